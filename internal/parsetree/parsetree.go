// Package parsetree defines the already-parsed expression-tree shapes
// internal/compiler consumes. The surface-syntax tokenizer and parser
// are external collaborators providing this tree as a named
// interface; this package is that interface — the node types
// themselves, with no lexer or parser behind them.
//
// One interface, many leaf struct types. Each node carries only its
// source line — there is no lexer in this domain to hand back a token
// from, and the line is all the expression compiler's
// debug-annotation pass needs.
package parsetree

// Node is implemented by every parse-tree variant the expression
// compiler (internal/compiler) accepts.
type Node interface {
	// Line reports the source line this node originated on, for the
	// debug line-number opcode and for diagnostics.
	Line() int
	// String renders the node for diagnostics and test failure
	// messages.
	String() string
}

type line int

func (l line) Line() int { return int(l) }

// NumberLiteral is an integer constant.
type NumberLiteral struct {
	line
	Value int32
}

func NewNumberLiteral(ln int, v int32) *NumberLiteral { return &NumberLiteral{line(ln), v} }
func (*NumberLiteral) String() string                 { return "<number>" }

// StringLiteral is a text constant.
type StringLiteral struct {
	line
	Value string
}

func NewStringLiteral(ln int, v string) *StringLiteral { return &StringLiteral{line(ln), v} }
func (*StringLiteral) String() string                  { return "<string>" }

// SelectorLiteral names a selector by its source spelling; the
// compiler resolves it to a selector number via the symbol table.
type SelectorLiteral struct {
	line
	Name string
}

func NewSelectorLiteral(ln int, name string) *SelectorLiteral {
	return &SelectorLiteral{line(ln), name}
}
func (s *SelectorLiteral) String() string { return s.Name + ":" }

// VarClass is the storage class a VarRef addresses — mirrors
// opcode.AccessClass plus the property case, which VarRef represents
// with IsProperty rather than folding into VarClass, since a property
// reference is resolved by selector name, not by a fixed class value.
type VarClass int

const (
	ClassGlobal VarClass = iota
	ClassLocal
	ClassTemp
	ClassParam
)

// VarRef is a variable or (with IsProperty set) property reference,
// optionally indexed.
type VarRef struct {
	line
	Name       string
	Class      VarClass
	IsProperty bool
	Index      Node // non-nil for an indexed reference
}

func NewVarRef(ln int, name string, class VarClass) *VarRef {
	return &VarRef{line: line(ln), Name: name, Class: class}
}

func NewPropRef(ln int, name string) *VarRef {
	return &VarRef{line: line(ln), Name: name, IsProperty: true}
}

func (v *VarRef) Indexed(idx Node) *VarRef { v.Index = idx; return v }

func (v *VarRef) String() string {
	if v.IsProperty {
		return v.Name
	}
	return v.Name
}

// AddressOf is the `address-of` parse-tree variant: compiles to the
// `lea` opcode rather than a load.
type AddressOf struct {
	line
	Target *VarRef
}

func NewAddressOf(ln int, target *VarRef) *AddressOf { return &AddressOf{line(ln), target} }
func (a *AddressOf) String() string                  { return "@" + a.Target.String() }

// ClassRef names a class by species number, resolved via the symbol
// table.
type ClassRef struct {
	line
	Name string
}

func NewClassRef(ln int, name string) *ClassRef { return &ClassRef{line(ln), name} }
func (c *ClassRef) String() string              { return c.Name }

// ObjectRef names an object instance, resolved via the symbol table.
type ObjectRef struct {
	line
	Name string
}

func NewObjectRef(ln int, name string) *ObjectRef { return &ObjectRef{line(ln), name} }
func (o *ObjectRef) String() string               { return o.Name }

// SelfRef is `self` used as a value: the current object's id, loaded
// into the accumulator.
type SelfRef struct {
	line
}

func NewSelfRef(ln int) *SelfRef { return &SelfRef{line(ln)} }
func (*SelfRef) String() string  { return "self" }
