package parsetree

// Call is a call to a local procedure, resolved via the symbol table
// to its code block.
type Call struct {
	line
	Callee string
	Args   []Node
}

func NewCall(ln int, callee string, args []Node) *Call { return &Call{line(ln), callee, args} }
func (*Call) String() string                           { return "(call)" }

// ExternKind mirrors anode.ExternKind; kept as its own type here so
// parsetree has no dependency on anode (the compiler translates one
// to the other).
type ExternKind int

const (
	ExternKernel ExternKind = iota
	ExternModuleNumber
	ExternOtherModule
)

// ExternCall is a call to a procedure outside this compilation unit,
// addressed by caller-supplied script/entry numbers.
type ExternCall struct {
	line
	Kind   ExternKind
	Module uint16
	Entry  uint16
	Args   []Node
}

func NewExternCall(ln int, kind ExternKind, module, entry uint16, args []Node) *ExternCall {
	return &ExternCall{line(ln), kind, module, entry, args}
}
func (*ExternCall) String() string { return "(calle)" }

// Message is one selector + argument list within a Send — a single
// send expression may carry more than one message to the same
// receiver.
type Message struct {
	Selector Node // a SelectorLiteral, or a computed expression
	Args     []Node
}

// Send is a message send: to an explicit receiver expression, to self
// (Receiver == nil, Super == false), or to super (Super == true).
type Send struct {
	line
	Receiver   Node
	Super      bool
	Superclass string // class name naming the superclass, when Super
	Messages   []Message
}

func NewSend(ln int, receiver Node, messages []Message) *Send {
	return &Send{line: line(ln), Receiver: receiver, Messages: messages}
}

func NewSelfSend(ln int, messages []Message) *Send {
	return &Send{line: line(ln), Messages: messages}
}

func NewSuperSend(ln int, superclass string, messages []Message) *Send {
	return &Send{line: line(ln), Super: true, Superclass: superclass, Messages: messages}
}

func (*Send) String() string { return "(send)" }

// Return returns Value (nil for a bare return) from the enclosing
// procedure or method.
type Return struct {
	line
	Value Node
}

func NewReturn(ln int, value Node) *Return { return &Return{line(ln), value} }
func (*Return) String() string             { return "(return)" }

// Rest represents `&rest` forwarding: the remaining actual arguments
// from the enclosing procedure/method, forwarded as a suffix of a
// Call's or Send's argument list.
type Rest struct {
	line
	From int // first forwarded parameter index
}

func NewRest(ln int, from int) *Rest { return &Rest{line(ln), from} }
func (*Rest) String() string         { return "&rest" }
