package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/opcode"
)

// Plain is a fixed-size, no-operand opcode: arithmetic, stack
// manipulation (push/pop/dup/toss), returns, self/super setup, and
// every other 1-byte instruction.
type Plain struct {
	posn
	Op opcode.Op
}

func NewPlain(op opcode.Op) *Plain { return &Plain{Op: op} }

func (*Plain) Size() int               { return 1 }
func (p *Plain) SetOffset(ofs int) int { p.place(ofs); return ofs + 1 }
func (*Plain) TryShrink() bool         { return false }
func (*Plain) CollectFixups(*FixupTable) {}
func (p *Plain) Emit(s *Sink) error    { return s.WriteByte(byte(p.Op)) }
func (p *Plain) Contains(n Node) bool  { o, ok := n.(*Plain); return ok && o == p }
func (p *Plain) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s", fmtOffset(&p.posn), opName(p.Op)))
}

// Imm is an opcode carrying a signed or unsigned immediate word whose
// width (byte or word) is fixed once, at construction, to whatever the
// value's magnitude requires. This is NOT something
// the offset/shrink fixpoint revisits — unlike branch and call
// distances, an immediate's width never depends on anything laid out
// later.
type Imm struct {
	posn
	Op     opcode.Op
	Signed bool
	Value  int32
	wide   bool
}

// NewImm constructs an immediate-carrying opcode, picking the
// narrowest width that holds value.
func NewImm(op opcode.Op, signed bool, value int32) *Imm {
	n := &Imm{Op: op, Signed: signed, Value: value}
	n.wide = !n.fitsByte()
	return n
}

func (n *Imm) fitsByte() bool {
	if n.Signed {
		return n.Value >= -128 && n.Value <= 127
	}
	return n.Value >= 0 && n.Value <= 255
}

func (n *Imm) Size() int {
	if n.wide {
		return 3
	}
	return 2
}

func (n *Imm) SetOffset(ofs int) int { n.place(ofs); return ofs + n.Size() }
func (*Imm) TryShrink() bool         { return false }
func (*Imm) CollectFixups(*FixupTable) {}

func (n *Imm) Emit(s *Sink) error {
	flag := opcode.SizeByte
	if n.wide {
		flag = opcode.SizeWord
	}
	if err := s.WriteByte(byte(n.Op.WithSize(flag))); err != nil {
		return err
	}
	if n.wide {
		return s.WriteWord(uint16(int16(n.Value)))
	}
	return s.WriteByte(byte(n.Value))
}

func (n *Imm) Contains(o Node) bool { other, ok := o.(*Imm); return ok && other == n }
func (n *Imm) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s\t%d", fmtOffset(&n.posn), opName(n.Op), n.Value))
}

// MutableImm is a 1- or 2-byte immediate whose value can be rewritten
// after emission but before the offset/shrink fixpoint runs — the
// ANode-level expression of the "push a placeholder arg count, compile
// the arguments, then backfill it" contract used for
// both local-procedure calls and sends. Width is fixed at construction
// time by the target dialect's argument-count width (1 byte for
// SCI_1_1, 2 bytes for SCI_2), not by the value — unlike Imm, which
// always picks the narrowest encoding for a literal.
type MutableImm struct {
	posn
	Op    opcode.Op
	Width int // 1 or 2
	Value uint16
}

// NewMutableImm constructs a backfillable immediate of the given
// dialect-determined width, initially holding value.
func NewMutableImm(op opcode.Op, width int, value uint16) *MutableImm {
	return &MutableImm{Op: op, Width: width, Value: value}
}

// SetValue overwrites the immediate's payload. Valid any time before
// Emit runs; has no effect on Size (the width never changes).
func (n *MutableImm) SetValue(v uint16) { n.Value = v }

func (n *MutableImm) Size() int               { return 1 + n.Width }
func (n *MutableImm) SetOffset(ofs int) int   { n.place(ofs); return ofs + n.Size() }
func (*MutableImm) TryShrink() bool           { return false }
func (*MutableImm) CollectFixups(*FixupTable) {}

func (n *MutableImm) Emit(s *Sink) error {
	if err := s.WriteByte(byte(n.Op)); err != nil {
		return err
	}
	if n.Width == 1 {
		return s.WriteByte(byte(n.Value))
	}
	return s.WriteWord(n.Value)
}

func (n *MutableImm) Contains(o Node) bool { other, ok := o.(*MutableImm); return ok && other == n }
func (n *MutableImm) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s\t%d", fmtOffset(&n.posn), opName(n.Op), n.Value))
}

// opName renders a disassembly-friendly mnemonic for a (possibly
// size-flagged) opcode, ignoring the low size bit and the access
// bit-fields for the plain opcode space.
func opName(op opcode.Op) string {
	if name, ok := mnemonics[op&^1]; ok {
		return name
	}
	if kind, dst, class, indexed, ok := opcode.DecodeAccess(op); ok {
		return accessName(kind, dst, class, indexed)
	}
	return fmt.Sprintf("op$%02x", byte(op))
}

var mnemonics = map[opcode.Op]string{
	opcode.OpConst: "const", opcode.OpPush0: "push0", opcode.OpPush1: "push1",
	opcode.OpPush2: "push2", opcode.OpPush: "push", opcode.OpPop: "pop",
	opcode.OpDup: "dup", opcode.OpToss: "toss", opcode.OpAdd: "add",
	opcode.OpSub: "sub", opcode.OpMul: "mul", opcode.OpDiv: "div",
	opcode.OpMod: "mod", opcode.OpShl: "shl", opcode.OpShr: "shr",
	opcode.OpAnd: "and", opcode.OpOr: "or", opcode.OpXor: "xor",
	opcode.OpNot: "not", opcode.OpNeg: "neg", opcode.OpEq: "eq",
	opcode.OpNe: "ne", opcode.OpGt: "gt", opcode.OpGe: "ge",
	opcode.OpLt: "lt", opcode.OpLe: "le", opcode.OpUGt: "ugt",
	opcode.OpUGe: "uge", opcode.OpULt: "ult", opcode.OpULe: "ule",
	opcode.OpBnt: "bnt", opcode.OpBt: "bt", opcode.OpJmp: "jmp",
	opcode.OpCall: "call", opcode.OpCalle: "calle", opcode.OpCalleK: "callk",
	opcode.OpSend: "send", opcode.OpSelf: "self", opcode.OpSuper: "super",
	opcode.OpRet: "ret", opcode.OpClass: "class", opcode.OpLoadSelf: "loadself",
	opcode.OpLofsa: "lofsa", opcode.OpLineNo: "line", opcode.OpFileName: "file",
	opcode.OpPprev: "pprev", opcode.OpPushSelf: "pushself",
	opcode.OpLdImm: "ldimm",
}

func accessName(kind opcode.AccessKind, dst opcode.AccessDst, class opcode.AccessClass, indexed bool) string {
	k := [...]string{"l", "s", "il", "dl"}[kind]
	d := [...]string{"a", "s"}[dst]
	var c string
	if class == opcode.PropTag {
		c = "p"
	} else {
		c = [...]string{"g", "l", "t", "p"}[class]
	}
	name := k + c + d
	if indexed {
		name += "i"
	}
	return name
}
