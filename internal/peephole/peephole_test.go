package peephole

import (
	"testing"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/opcode"
)

func runToFixpoint(nodes []anode.Node) []anode.Node {
	for {
		next, changed := Rewrite(nodes)
		nodes = next
		if !changed {
			return nodes
		}
	}
}

func TestPushImmZeroOneTwoFolded(t *testing.T) {
	nodes := []anode.Node{
		anode.NewImm(opcode.OpConst, false, 0),
		anode.NewImm(opcode.OpConst, false, 1),
		anode.NewImm(opcode.OpConst, false, 2),
	}
	got := runToFixpoint(nodes)
	wantOps := []opcode.Op{opcode.OpPush0, opcode.OpPush1, opcode.OpPush2}
	if len(got) != len(wantOps) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(wantOps))
	}
	for i, want := range wantOps {
		p, ok := got[i].(*anode.Plain)
		if !ok || p.Op != want {
			t.Errorf("got[%d] = %#v, want Plain{%v}", i, got[i], want)
		}
	}
}

func TestDoubleRetCollapses(t *testing.T) {
	nodes := []anode.Node{
		anode.NewPlain(opcode.OpRet),
		anode.NewPlain(opcode.OpRet),
	}
	got := runToFixpoint(nodes)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if p, ok := got[0].(*anode.Plain); !ok || p.Op != opcode.OpRet {
		t.Errorf("got[0] = %#v, want a single OpRet", got[0])
	}
}

func TestSelfIdPushFusesToPushSelf(t *testing.T) {
	nodes := []anode.Node{
		anode.NewPlain(opcode.OpLoadSelf),
		anode.NewPlain(opcode.OpPush),
	}
	got := runToFixpoint(nodes)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if p, ok := got[0].(*anode.Plain); !ok || p.Op != opcode.OpPushSelf {
		t.Errorf("got[0] = %#v, want Plain{OpPushSelf}", got[0])
	}
}

func TestSelfIdSendFusesToSelfSend(t *testing.T) {
	nodes := []anode.Node{
		anode.NewPlain(opcode.OpLoadSelf),
		anode.NewSend(opcode.OpSend, 4),
	}
	got := runToFixpoint(nodes)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	s, ok := got[0].(*anode.SendOp)
	if !ok || s.Op != opcode.OpSelf || s.ArgBytes != 4 {
		t.Errorf("got[0] = %#v, want self-send with ArgBytes 4", got[0])
	}
}

// TestIdempotence: running the
// optimizer twice in succession on an already-fixpointed block yields
// no further rewrites.
func TestIdempotence(t *testing.T) {
	nodes := []anode.Node{
		anode.NewImm(opcode.OpConst, false, 0),
		anode.NewPlain(opcode.OpLoadSelf),
		anode.NewPlain(opcode.OpPush),
	}
	fixed := runToFixpoint(nodes)
	_, changed := Rewrite(fixed)
	if changed {
		t.Errorf("Rewrite on an already-fixpointed block reported a change")
	}
}

// TestLoadImmPushFusesToConst covers the "load-imm v; push ->
// push-imm v" row: a pair of separate accumulator-load and stack-push
// opcodes collapses to the single direct-to-stack form, which a
// further pass then folds to push0/push1/push2 where applicable.
func TestLoadImmPushFusesToConst(t *testing.T) {
	nodes := []anode.Node{
		anode.NewImm(opcode.OpLdImm, false, 3),
		anode.NewPlain(opcode.OpPush),
	}
	got := runToFixpoint(nodes)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	imm, ok := got[0].(*anode.Imm)
	if !ok || imm.Op != opcode.OpConst || imm.Value != 3 {
		t.Errorf("got[0] = %#v, want Imm{OpConst, 3}", got[0])
	}
}

// TestLoadImmRedundantDeleted covers the "load-imm v -> delete" row
// when the accumulator is already known to hold v.
func TestLoadImmRedundantDeleted(t *testing.T) {
	nodes := []anode.Node{
		anode.NewImm(opcode.OpLdImm, false, 7),
		anode.NewImm(opcode.OpConst, false, 5), // pushes 5; leaves the accumulator alone
		anode.NewImm(opcode.OpLdImm, false, 7),
	}
	got := runToFixpoint(nodes)
	count := 0
	for _, n := range got {
		if imm, ok := n.(*anode.Imm); ok && imm.Op == opcode.OpLdImm {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected the second redundant OpLdImm 7 to be deleted, got %d remaining", count)
	}
}

func TestDeleteRedundantVarLoad(t *testing.T) {
	nodes := []anode.Node{
		anode.NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassLocal, false, 2),
		anode.NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassLocal, false, 2),
	}
	got := runToFixpoint(nodes)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (second redundant load deleted)", len(got))
	}
}
