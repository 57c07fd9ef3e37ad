package anode

import (
	"testing"

	"github.com/dr8co/sciasm/internal/opcode"
)

// buildBranchyBlock builds a block with a mix of shrinkable branches
// and fixed-size opcodes, every branch resolved to a later label.
func buildBranchyBlock() *Composite {
	block := NewComposite(KindCodeBlock, "test")
	near := NewBranch(opcode.OpBnt)
	far := NewBranch(opcode.OpJmp)
	block.Append(near)
	block.Append(far)
	for i := 0; i < 40; i++ {
		block.Append(NewPlain(opcode.OpPop))
	}
	nearLabel := NewLabel(0)
	block.Append(nearLabel)
	for i := 0; i < 200; i++ {
		block.Append(NewPlain(opcode.OpPop))
	}
	farLabel := NewLabel(1)
	block.Append(farLabel)
	_ = near.Target.Resolve(Node(nearLabel))
	_ = far.Target.Resolve(Node(farLabel))
	return block
}

// After the shrink fixpoint, SetOffset(start) returns start + Size()
// and repeating it returns the same value.
func TestSetOffsetRoundTripStable(t *testing.T) {
	block := buildBranchyBlock()
	Resolve(block)

	for _, start := range []int{0, 10, 1000} {
		end1 := block.SetOffset(start)
		if end1 != start+block.Size() {
			t.Errorf("SetOffset(%d) = %d, want start+Size() = %d", start, end1, start+block.Size())
		}
		end2 := block.SetOffset(start)
		if end2 != end1 {
			t.Errorf("repeated SetOffset(%d) = %d, first returned %d", start, end2, end1)
		}
	}
}

// Across shrink iterations no node's size increases.
func TestShrinkMonotonicity(t *testing.T) {
	block := buildBranchyBlock()
	block.SetOffset(0)

	nodes := block.Iterate()
	prev := make([]int, len(nodes))
	for i, n := range nodes {
		prev[i] = n.Size()
	}

	for pass := 0; pass < 5; pass++ {
		block.TryShrink()
		block.SetOffset(0)
		for i, n := range nodes {
			if n.Size() > prev[i] {
				t.Fatalf("pass %d: node %d grew from %d to %d bytes", pass, i, prev[i], n.Size())
			}
			prev[i] = n.Size()
		}
	}
}
