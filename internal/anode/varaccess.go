package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/opcode"
)

// VarAccess is a single variable- or property-access opcode: one of
// the load/store/increment-load/decrement-load forms, targeting the
// accumulator or the stack, against a global, local, temp, or param
// slot — or, with Class set to opcode.PropTag, against the current
// object's own property table addressed by selector number rather than
// storage class. The variable-access and property-access contracts
// describe both as the same bit-encoded opcode family; this node is
// shared between them for exactly that reason.
//
// The address operand's width (1 byte or 2 bytes, for a 2- or 3-byte
// total instruction) is fixed once at construction from the address's
// own magnitude and is never revisited by the offset/shrink fixpoint —
// unlike a Branch or Call displacement, nothing laid out later can
// change how big an already-known slot index is.
type VarAccess struct {
	posn
	Kind    opcode.AccessKind
	Dst     opcode.AccessDst
	Class   opcode.AccessClass
	Indexed bool
	Address uint16
	wide    bool
}

// NewVarAccess constructs a variable- or property-access opcode
// addressing slot/selector number addr, choosing the narrowest operand
// width that holds it.
func NewVarAccess(kind opcode.AccessKind, dst opcode.AccessDst, class opcode.AccessClass, indexed bool, addr uint16) *VarAccess {
	return &VarAccess{
		Kind:    kind,
		Dst:     dst,
		Class:   class,
		Indexed: indexed,
		Address: addr,
		wide:    addr > 0xff,
	}
}

func (v *VarAccess) op() opcode.Op {
	return opcode.MakeAccess(v.Kind, v.Dst, v.Class, v.Indexed).WithWide(v.wide)
}

func (v *VarAccess) Size() int {
	if v.wide {
		return 3
	}
	return 2
}

func (v *VarAccess) SetOffset(ofs int) int   { v.place(ofs); return ofs + v.Size() }
func (*VarAccess) TryShrink() bool           { return false }
func (*VarAccess) CollectFixups(*FixupTable) {}

func (v *VarAccess) Emit(s *Sink) error {
	if err := s.WriteByte(byte(v.op())); err != nil {
		return err
	}
	if v.wide {
		return s.WriteWord(v.Address)
	}
	return s.WriteByte(byte(v.Address))
}

func (v *VarAccess) Contains(n Node) bool { o, ok := n.(*VarAccess); return ok && o == v }

func (v *VarAccess) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s\t%d", fmtOffset(&v.posn), opName(v.op()), v.Address))
}

// EffectiveAddress computes the address (not the value) a variable or
// property reference would load from, into the accumulator — the
// `lea` opcode, the compiled form of the `address-of` parse-tree
// node.
// Its operand layout mirrors VarAccess's: a bit-encoded descriptor byte
// (kind is always irrelevant here and left zero) followed by the same
// width-flagged address.
type EffectiveAddress struct {
	posn
	Dst     opcode.AccessDst
	Class   opcode.AccessClass
	Indexed bool
	Address uint16
	wide    bool
}

func NewEffectiveAddress(dst opcode.AccessDst, class opcode.AccessClass, indexed bool, addr uint16) *EffectiveAddress {
	return &EffectiveAddress{Dst: dst, Class: class, Indexed: indexed, Address: addr, wide: addr > 0xff}
}

func (e *EffectiveAddress) descriptor() byte {
	b := byte(e.Dst) << 4
	b |= byte(e.Class) << 1
	if e.Indexed {
		b |= 0x01
	}
	return b
}

func (e *EffectiveAddress) Size() int {
	if e.wide {
		return 4
	}
	return 3
}

func (e *EffectiveAddress) SetOffset(ofs int) int   { e.place(ofs); return ofs + e.Size() }
func (*EffectiveAddress) TryShrink() bool           { return false }
func (*EffectiveAddress) CollectFixups(*FixupTable) {}

func (e *EffectiveAddress) Emit(s *Sink) error {
	if err := s.WriteByte(byte(opcode.OpLea)); err != nil {
		return err
	}
	if err := s.WriteByte(e.descriptor()); err != nil {
		return err
	}
	if e.wide {
		return s.WriteWord(e.Address)
	}
	return s.WriteByte(byte(e.Address))
}

func (e *EffectiveAddress) Contains(n Node) bool { o, ok := n.(*EffectiveAddress); return ok && o == e }

func (e *EffectiveAddress) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tlea\t%#02x %d", fmtOffset(&e.posn), e.descriptor(), e.Address))
}
