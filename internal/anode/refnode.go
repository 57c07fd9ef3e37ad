package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/forwardref"
	"github.com/dr8co/sciasm/internal/opcode"
)

// Branch is a conditional or unconditional jump to a Label. Per
// design, even a branch-to-label goes through the same
// ForwardRef cross-reference mechanism as a call-to-procedure or an
// object-id load — the label may be bound (resolved to an actual
// Label node, once it's appended to the code block) after the branch
// referencing it was emitted.
type Branch struct {
	posn
	Op     opcode.Op
	Target forwardref.Ref[Node]
	wide   bool
}

// NewBranch creates an unresolved-target branch. Callers register the
// eventual Label on Target themselves (see the compiler's bindLabel
// helper) — Branch only consumes the resolution to drive TryShrink.
func NewBranch(op opcode.Op) *Branch {
	b := &Branch{Op: op, wide: true}
	return b
}

func (b *Branch) Size() int {
	if b.wide {
		return 3
	}
	return 2
}

func (b *Branch) SetOffset(ofs int) int { b.place(ofs); return ofs + b.Size() }

// TryShrink implements the branch shrink rule: if the
// target's offset is known and within signed-byte distance of this
// node's end-of-long-form position, switch to the 1-byte displacement
// encoding.
func (b *Branch) TryShrink() bool {
	target, ok := b.Target.Value()
	if !ok {
		return false
	}
	targetOfs, ok := target.Offset()
	if !ok {
		return false
	}
	selfOfs, _ := b.Offset()
	dist := targetOfs - (selfOfs + 4)
	wasWide := b.wide
	b.wide = !(dist > -128 && dist < 128)
	return wasWide && !b.wide
}

func (*Branch) CollectFixups(*FixupTable) {} // branch displacements are relative, never fixed up

func (b *Branch) Emit(s *Sink) error {
	target, ok := b.Target.Value()
	if !ok {
		return fmt.Errorf("emit: branch target never resolved")
	}
	targetOfs, _ := target.Offset()
	selfOfs, _ := b.Offset()
	disp := targetOfs - (selfOfs + b.Size())
	flag := opcode.SizeWord
	if !b.wide {
		flag = opcode.SizeByte
	}
	if err := s.WriteByte(byte(b.Op.WithSize(flag))); err != nil {
		return err
	}
	if b.wide {
		return s.WriteWord(uint16(int16(disp)))
	}
	return s.WriteByte(byte(int8(disp)))
}

func (b *Branch) Contains(n Node) bool { o, ok := n.(*Branch); return ok && o == b }
func (b *Branch) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s\t<fwd>", fmtOffset(&b.posn), opName(b.Op)))
}

// Call is a relative call to a local procedure's code block. Its
// displacement shrinks the same way a Branch's does,
// except a still-unresolved target (an undefined procedure at emit
// time) is left in long form rather than erroring here — the
// undefined-procedure diagnostic is raised by Emit, locally, the first
// time a still-unresolved reference is actually written out.
type Call struct {
	posn
	Op     opcode.Op
	Target forwardref.Ref[Node]
	Symbol string // for the "undefined procedure" diagnostic
	wide   bool
}

func NewCall(op opcode.Op, symbol string) *Call {
	return &Call{Op: op, Symbol: symbol, wide: true}
}

func (c *Call) Size() int {
	if c.wide {
		return 3
	}
	return 2
}

func (c *Call) SetOffset(ofs int) int { c.place(ofs); return ofs + c.Size() }

func (c *Call) TryShrink() bool {
	target, ok := c.Target.Value()
	if !ok {
		return false
	}
	targetOfs, ok := target.Offset()
	if !ok {
		return false
	}
	selfOfs, _ := c.Offset()
	dist := targetOfs - (selfOfs + 4)
	wasWide := c.wide
	c.wide = !(dist > -128 && dist < 128)
	return wasWide && !c.wide
}

func (*Call) CollectFixups(*FixupTable) {}

func (c *Call) Emit(s *Sink) error {
	target, ok := c.Target.Value()
	if !ok {
		return fmt.Errorf("undefined procedure %q referenced", c.Symbol)
	}
	targetOfs, _ := target.Offset()
	selfOfs, _ := c.Offset()
	disp := targetOfs - (selfOfs + c.Size())
	flag := opcode.SizeWord
	if !c.wide {
		flag = opcode.SizeByte
	}
	if err := s.WriteByte(byte(c.Op.WithSize(flag))); err != nil {
		return err
	}
	if c.wide {
		return s.WriteWord(uint16(int16(disp)))
	}
	return s.WriteByte(byte(int8(disp)))
}

func (c *Call) Contains(n Node) bool { o, ok := n.(*Call); return ok && o == c }
func (c *Call) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tcall\t%s", fmtOffset(&c.posn), c.Symbol))
}

// ExternKind distinguishes the three kinds of external call: a kernel
// (engine built-in) call, a call to a numbered procedure in the same
// script-group module, and a call to a named module's exported entry.
// ExternCall.Emit writes OpCalleK for a kernel call and OpCalle for
// both other kinds, so ExternModuleNumber and ExternOtherModule
// produce identical bytes.
type ExternKind int

const (
	ExternKernel ExternKind = iota
	ExternModuleNumber
	ExternOtherModule
)

// ExternCall is a call to a procedure outside this compilation unit,
// addressed by caller-supplied numbers rather than a ForwardRef —
// there is nothing in this compilation unit to forward-reference.
type ExternCall struct {
	posn
	Kind       ExternKind
	Module     uint16
	Entry      uint16
	ArgCount   uint16
	ArgWidth   int // dialect arg-count width, 1 or 2
}

func NewExternCall(kind ExternKind, module, entry, argCount uint16, argWidth int) *ExternCall {
	return &ExternCall{Kind: kind, Module: module, Entry: entry, ArgCount: argCount, ArgWidth: argWidth}
}

func (e *ExternCall) Size() int { return 1 + 2 + 2 + e.ArgWidth }

func (e *ExternCall) SetOffset(ofs int) int { e.place(ofs); return ofs + e.Size() }
func (*ExternCall) TryShrink() bool         { return false }
func (*ExternCall) CollectFixups(*FixupTable) {}

func (e *ExternCall) Emit(s *Sink) error {
	op := opcode.OpCalleK
	switch e.Kind {
	case ExternModuleNumber:
		op = opcode.OpCalle
	case ExternOtherModule:
		op = opcode.OpCalle
	}
	if err := s.WriteByte(byte(op)); err != nil {
		return err
	}
	if err := s.WriteWord(e.Module); err != nil {
		return err
	}
	if err := s.WriteWord(e.Entry); err != nil {
		return err
	}
	if e.ArgWidth == 1 {
		return s.WriteByte(byte(e.ArgCount))
	}
	return s.WriteWord(e.ArgCount)
}

func (e *ExternCall) Contains(n Node) bool { o, ok := n.(*ExternCall); return ok && o == e }
func (e *ExternCall) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tcalle\t%d %d %d", fmtOffset(&e.posn), e.Module, e.Entry, e.ArgCount))
}

// AddrRef emits an opcode (always `lofsa`, load-offset-to-accumulator)
// followed by a 16-bit address word resolved from a ForwardRef — an
// object-id load or a text-offset load. Both
// contribute exactly one fixup, at self_offset+1.
type AddrRef struct {
	posn
	Target forwardref.Ref[Node]
	// Label names the ref for listings ("obj", "text").
	Label string
}

func NewAddrRef(label string) *AddrRef { return &AddrRef{Label: label} }

func (*AddrRef) Size() int               { return 3 }
func (a *AddrRef) SetOffset(ofs int) int { a.place(ofs); return ofs + 3 }
func (*AddrRef) TryShrink() bool         { return false }

func (a *AddrRef) CollectFixups(fx *FixupTable) {
	selfOfs, _ := a.Offset()
	fx.Add(selfOfs + 1)
}

func (a *AddrRef) Emit(s *Sink) error {
	target, ok := a.Target.Value()
	if !ok {
		return fmt.Errorf("emit: unresolved %s reference", a.Label)
	}
	targetOfs, _ := target.Offset()
	if err := s.WriteByte(byte(opcode.OpLofsa)); err != nil {
		return err
	}
	return s.WriteWord(uint16(targetOfs))
}

func (a *AddrRef) Contains(n Node) bool { o, ok := n.(*AddrRef); return ok && o == a }
func (a *AddrRef) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tlofsa\t<%s>", fmtOffset(&a.posn), a.Label))
}

// RefWord is a bare 16-bit word holding another node's resolved
// offset. Unlike AddrRef it carries no opcode of its own; it is pure
// data, always fixed up at its own offset. Dispatch-table entries and
// object property/dictionary words use DispatchEntry instead, whose
// fixup is conditional.
type RefWord struct {
	posn
	Target forwardref.Ref[Node]
	Label  string
}

func NewRefWord(label string) *RefWord { return &RefWord{Label: label} }

func (*RefWord) Size() int               { return 2 }
func (r *RefWord) SetOffset(ofs int) int { r.place(ofs); return ofs + 2 }
func (*RefWord) TryShrink() bool         { return false }

func (r *RefWord) CollectFixups(fx *FixupTable) {
	selfOfs, _ := r.Offset()
	fx.Add(selfOfs)
}

func (r *RefWord) Emit(s *Sink) error {
	target, ok := r.Target.Value()
	if !ok {
		return fmt.Errorf("emit: unresolved %s reference", r.Label)
	}
	targetOfs, _ := target.Offset()
	return s.WriteWord(uint16(targetOfs))
}

func (r *RefWord) Contains(n Node) bool { o, ok := n.(*RefWord); return ok && o == r }
func (r *RefWord) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t.word\t<%s>", fmtOffset(&r.posn), r.Label))
}
