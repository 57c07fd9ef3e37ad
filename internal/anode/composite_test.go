package anode

import (
	"bytes"
	"testing"

	"github.com/dr8co/sciasm/internal/opcode"
)

// TestResolveShrinksNearbyBranch exercises the layout fixpoint: a
// branch whose target sits well within signed-byte range should end up
// in its short, 2-byte form once offsets are known, even though it was
// built long (every real caller starts every Branch unresolved and
// wide) and the label comes later in program order.
func TestResolveShrinksNearbyBranch(t *testing.T) {
	block := NewComposite(KindCodeBlock, "test")
	branch := NewBranch(opcode.OpJmp)
	block.Append(branch)
	for i := 0; i < 3; i++ {
		block.Append(NewPlain(opcode.OpPop))
	}
	label := NewLabel(0)
	block.Append(label)
	if err := branch.Target.Resolve(Node(label)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	Resolve(block)

	if branch.Size() != 2 {
		t.Errorf("branch did not shrink: Size() = %d, want 2", branch.Size())
	}
	if block.Size() != 2+3+0 {
		t.Errorf("block.Size() = %d, want %d", block.Size(), 2+3)
	}
}

// TestResolveKeepsFarBranchWide checks that a branch whose target is
// far enough away stays in its 3-byte long form.
func TestResolveKeepsFarBranchWide(t *testing.T) {
	block := NewComposite(KindCodeBlock, "test")
	branch := NewBranch(opcode.OpJmp)
	block.Append(branch)
	for i := 0; i < 200; i++ {
		block.Append(NewPlain(opcode.OpPop))
	}
	label := NewLabel(0)
	block.Append(label)
	if err := branch.Target.Resolve(Node(label)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	Resolve(block)

	if branch.Size() != 3 {
		t.Errorf("branch unexpectedly shrank: Size() = %d, want 3", branch.Size())
	}
}

// TestCompositeEmitOrder checks that Emit writes each child's bytes in
// append order.
func TestCompositeEmitOrder(t *testing.T) {
	block := NewComposite(KindGeneric, "")
	block.Append(NewWord(0x1234, "a"))
	block.Append(NewWord(0x5678, "b"))
	block.SetOffset(0)

	var buf bytes.Buffer
	sink := NewSink(&buf, true)
	if err := block.Emit(sink); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	want := []byte{0x12, 0x34, 0x56, 0x78}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Emit() = % x, want % x", buf.Bytes(), want)
	}
}

// TestCompositeOptimizeFixpoint verifies Optimize keeps calling the
// installed rewrite function until it reports no change, and that
// OptimizeAll reaches a nested code block.
func TestCompositeOptimizeFixpoint(t *testing.T) {
	inner := NewComposite(KindCodeBlock, "inner")
	inner.Append(NewPlain(opcode.OpPush1))
	inner.Append(NewPlain(opcode.OpPush1))
	inner.Append(NewPlain(opcode.OpPush1))

	calls := 0
	inner.SetOptimizer(func(children []Node) ([]Node, bool) {
		calls++
		for i, n := range children {
			if p, ok := n.(*Plain); ok && p.Op == opcode.OpPush1 {
				rest := append([]Node{}, children[:i]...)
				rest = append(rest, NewPlain(opcode.OpPush2))
				rest = append(rest, children[i+1:]...)
				return rest, true
			}
		}
		return children, false
	})

	outer := NewComposite(KindGeneric, "outer")
	outer.Append(inner)

	if !OptimizeAll(outer) {
		t.Fatalf("OptimizeAll reported no change")
	}
	if calls != 4 { // 3 rewrites + 1 confirming no-change pass
		t.Errorf("optimizer called %d times, want 4", calls)
	}
	for _, child := range inner.Children {
		p, ok := child.(*Plain)
		if !ok || p.Op != opcode.OpPush2 {
			t.Errorf("child left unrewritten: %#v", child)
		}
	}
}

// TestVarAccessWidthFixedAtConstruction checks that a VarAccess's
// 2-vs-3-byte size depends only on the address supplied at
// construction, never on TryShrink.
func TestVarAccessWidthFixedAtConstruction(t *testing.T) {
	narrow := NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassLocal, false, 5)
	if narrow.Size() != 2 {
		t.Errorf("narrow VarAccess Size() = %d, want 2", narrow.Size())
	}
	wide := NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassLocal, false, 500)
	if wide.Size() != 3 {
		t.Errorf("wide VarAccess Size() = %d, want 3", wide.Size())
	}
	if narrow.TryShrink() || wide.TryShrink() {
		t.Errorf("VarAccess.TryShrink() must always report false")
	}
}

// TestVarAccessPropertyReusesFamily checks that passing opcode.PropTag
// as the class produces an access opcode distinguishable only by its
// class field, not a different opcode family.
func TestVarAccessPropertyReusesFamily(t *testing.T) {
	v := NewVarAccess(opcode.AccessStore, opcode.DstStack, opcode.PropTag, false, 3)
	_, _, class, _, ok := opcode.DecodeAccess(v.op())
	if !ok {
		t.Fatalf("property VarAccess op() not decoded as an access opcode")
	}
	if class != opcode.PropTag {
		t.Errorf("class = %v, want PropTag", class)
	}
}
