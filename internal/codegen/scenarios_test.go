package codegen

import (
	"bytes"
	"testing"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/compiler"
	"github.com/dr8co/sciasm/internal/diag"
	"github.com/dr8co/sciasm/internal/opcode"
	"github.com/dr8co/sciasm/internal/parsetree"
	"github.com/dr8co/sciasm/internal/symtab"
)

// scenarioUnit bundles everything an end-to-end compile fragment
// needs: a Unit, a Compiler wired to it, and a fresh symbol stack —
// the same trio cmd/sciasm's driver assembles per compilation unit.
type scenarioUnit struct {
	u    *Unit
	c    *compiler.Compiler
	syms *symtab.Stack
	d    *diag.Collector
}

func newScenario(t *testing.T) *scenarioUnit {
	return newScenarioDialect(t, compiler.SCI11)
}

func newScenarioDialect(t *testing.T, dialect compiler.Dialect) *scenarioUnit {
	t.Helper()
	d := diag.NewCollector(nil)
	syms := symtab.NewStack(false)
	pool := compiler.NewStringPool()
	u := NewUnit(dialect, false, pool)
	c := compiler.New(dialect, false, d, syms, pool)
	return &scenarioUnit{u: u, c: c, syms: syms, d: d}
}

// declareProcedure defines name as a procedure symbol in the global
// scope before compiling, exactly as a forward call to a
// not-yet-compiled procedure needs.
func (s *scenarioUnit) declareProcedure(name string) *symtab.Symbol {
	return s.syms.Global().Define(name, symtab.KindProcedure)
}

// compileAndPublish compiles a procedure body, resolves its symbol's
// ForwardRef to the emitted code block, appends it to the unit's code
// list, and (if index >= 0) registers it as the public export at
// index.
func (s *scenarioUnit) compileAndPublish(sym *symtab.Symbol, index int, body []parsetree.Node) *anode.Composite {
	block := s.c.CompileProcedure(sym.Name, "test.sc", 0, body)
	_ = sym.Ref.Resolve(anode.Node(block))
	s.u.AddProcedure(block)
	if index >= 0 {
		s.u.Disp.AddPublic(index, sym.Name, &sym.Ref)
	}
	return block
}

func opBytes(block *anode.Composite) []byte {
	var buf bytes.Buffer
	_ = block.Emit(anode.NewSink(&buf, false))
	return buf.Bytes()
}

// S1: an empty public procedure compiles to exactly op_ret, and its
// dispatch-table entry resolves to the code block's offset.
func TestScenarioS1EmptyProcedure(t *testing.T) {
	s := newScenario(t)
	foo := s.declareProcedure("foo")
	block := s.compileAndPublish(foo, 0, nil)

	s.u.Resolve()

	if got := opBytes(block); !bytes.Equal(got, []byte{byte(opcode.OpRet)}) {
		t.Fatalf("expected a lone op_ret, got %v", got)
	}

	blockOfs, ok := block.Offset()
	if !ok {
		t.Fatal("code block never got an offset")
	}
	entry, ok := s.u.Disp.Entry(0).(*anode.DispatchEntry)
	if !ok {
		t.Fatalf("dispatch entry 0 is not an *anode.DispatchEntry")
	}
	target, ok := entry.Target.Value()
	if !ok {
		t.Fatal("dispatch entry 0's target never resolved")
	}
	targetOfs, _ := target.Offset()
	if targetOfs != blockOfs {
		t.Errorf("dispatch entry points at offset %d, want the code block's own offset %d", targetOfs, blockOfs)
	}
}

// S2: a forward branch whose target lands within signed-byte distance
// shrinks to the 2-byte encoding after the offset/shrink fixpoint.
func TestScenarioS2BranchShrink(t *testing.T) {
	s := newScenario(t)
	p := s.declareProcedure("p")

	a := parsetree.NewVarRef(1, "a", parsetree.ClassTemp)
	test := parsetree.NewComparison(1, "==", []parsetree.Node{a, parsetree.NewNumberLiteral(1, 0)})
	body := []parsetree.Node{
		parsetree.NewIf(1, []parsetree.IfClause{{
			Test: test,
			Body: []parsetree.Node{parsetree.NewReturn(1, parsetree.NewNumberLiteral(1, 1))},
		}}, nil),
	}

	block := s.compileAndPublish(p, -1, body)
	s.u.Resolve()

	var branch *anode.Branch
	for _, n := range block.Iterate() {
		if b, ok := n.(*anode.Branch); ok {
			branch = b
		}
	}
	if branch == nil {
		t.Fatal("expected a compiled bnt branch in the code block")
	}
	if branch.Size() != 2 {
		t.Errorf("expected the forward branch to shrink to 2 bytes, got %d", branch.Size())
	}
}

// S3: compiling (+ 0 1 2) (not folded to a single literal — constant
// folding is a parse-time transformation, out of scope here, so this
// 3-operand node arrives exactly as built) compiles the chain
// left-to-right: push the running total, load the next operand into
// the accumulator, add. Only the running total's leading zero ever
// sits adjacent to a push, so only it folds to a single-byte push0;
// the two literal
// operands feeding `add` are loaded straight into the accumulator and
// never become push-imm forms.
func TestScenarioS3PushImmFolding(t *testing.T) {
	s := newScenario(t)
	p := s.declareProcedure("p")

	expr := parsetree.NewNaryOp(1, "+", []parsetree.Node{
		parsetree.NewNumberLiteral(1, 0),
		parsetree.NewNumberLiteral(1, 1),
		parsetree.NewNumberLiteral(1, 2),
	})
	block := s.compileAndPublish(p, -1, []parsetree.Node{expr})
	s.u.Resolve()

	got := opBytes(block)
	ldimmByte := byte(opcode.OpLdImm.WithSize(opcode.SizeByte))
	want := []byte{
		byte(opcode.OpPush0),
		ldimmByte, 1,
		byte(opcode.OpAdd),
		byte(opcode.OpPush),
		ldimmByte, 2,
		byte(opcode.OpAdd),
		byte(opcode.OpRet),
	}
	if !bytes.Equal(got, want) {
		t.Errorf("push-imm folding mismatch:\ngot:  %v\nwant: %v", got, want)
	}
}

// S4: (self foo: 1 2) pushes the selector number, a backfilled arg
// count, and both arguments, then loads self immediately ahead of the
// send — where the peephole optimizer fuses the loadself/send pair
// into a single self-send carrying total arg bytes = 2 (selector) +
// 2 (count) + 4 (two args).
func TestScenarioS4SendToSelf(t *testing.T) {
	s := newScenarioDialect(t, compiler.SCI2)
	// foo: must be a known selector (global KindSelector symbol) for
	// the compiler to resolve its number — see resolveSelectorNumber.
	selSym := s.syms.Global().Define("foo", symtab.KindSelector)
	selSym.Value = 9

	p := s.declareProcedure("p")
	send := parsetree.NewSelfSend(1, []parsetree.Message{{
		Selector: parsetree.NewSelectorLiteral(1, "foo"),
		Args: []parsetree.Node{
			parsetree.NewNumberLiteral(1, 1),
			parsetree.NewNumberLiteral(1, 2),
		},
	}})
	block := s.compileAndPublish(p, -1, []parsetree.Node{send})
	s.u.Resolve()

	var selfSend *anode.SendOp
	for _, n := range block.Iterate() {
		switch v := n.(type) {
		case *anode.SendOp:
			if v.Op != opcode.OpSelf {
				t.Errorf("expected the send to fuse into a self-send, got opcode %v", v.Op)
			}
			selfSend = v
		case *anode.Plain:
			if v.Op == opcode.OpLoadSelf {
				t.Error("raw loadself survived; it should have fused into the self-send")
			}
		}
	}
	if selfSend == nil {
		t.Fatal("no send opcode in the compiled block")
	}
	if selfSend.ArgBytes != 8 {
		t.Errorf("expected total arg bytes 8 (2 selector + 2 count + 4 for two args), got %d", selfSend.ArgBytes)
	}
}

// `self` used as an argument value loads the self id and pushes it;
// the peephole optimizer fuses that pair into a single push-self,
// while the send's own trailing loadself still fuses into the
// self-send.
func TestSelfArgumentFusesToPushSelf(t *testing.T) {
	s := newScenarioDialect(t, compiler.SCI2)
	selSym := s.syms.Global().Define("foo", symtab.KindSelector)
	selSym.Value = 9

	p := s.declareProcedure("p")
	send := parsetree.NewSelfSend(1, []parsetree.Message{{
		Selector: parsetree.NewSelectorLiteral(1, "foo"),
		Args:     []parsetree.Node{parsetree.NewSelfRef(1)},
	}})
	block := s.compileAndPublish(p, -1, []parsetree.Node{send})
	s.u.Resolve()

	pushSelfs := 0
	for _, n := range block.Iterate() {
		switch v := n.(type) {
		case *anode.Plain:
			switch v.Op {
			case opcode.OpPushSelf:
				pushSelfs++
			case opcode.OpLoadSelf:
				t.Error("raw loadself survived peephole")
			}
		case *anode.SendOp:
			if v.Op != opcode.OpSelf {
				t.Errorf("expected a fused self-send, got opcode %v", v.Op)
			}
		}
	}
	if pushSelfs != 1 {
		t.Errorf("expected exactly one fused push-self, got %d", pushSelfs)
	}
}

// S5: a call compiled before its callee is defined resolves once the
// callee is compiled, and shrinks to the 2-byte call form when the
// distance allows.
func TestScenarioS5ForwardCall(t *testing.T) {
	s := newScenario(t)
	a := s.declareProcedure("a")
	b := s.declareProcedure("b")

	aBlock := s.compileAndPublish(a, -1, []parsetree.Node{
		parsetree.NewCall(1, "b", nil),
	})
	bBlock := s.compileAndPublish(b, -1, nil)

	s.u.Resolve()

	var call *anode.Call
	for _, n := range aBlock.Iterate() {
		if c, ok := n.(*anode.Call); ok {
			call = c
		}
	}
	if call == nil {
		t.Fatal("expected a compiled call node in procedure a's code block")
	}
	target, ok := call.Target.Value()
	if !ok {
		t.Fatal("call target never resolved")
	}
	if target != anode.Node(bBlock) {
		t.Error("call target did not resolve to b's code block")
	}
	if call.Size() != 2 {
		t.Errorf("expected the call to shrink to 2 bytes, got %d", call.Size())
	}
}

// S6: an instance whose name property is a string literal gets a
// property-table entry pointing at the interned string's offset, and a
// fixup at that word.
func TestScenarioS6ObjectTextProperty(t *testing.T) {
	s := newScenario(t)
	text := s.c.Strings.Intern("Fred")

	obj := symtab.NewObject("fred", false)
	nameVal := symtab.LiteralValue{IsText: true}
	_ = nameVal.Text.Resolve(anode.Node(text))
	obj.AddSelector(symtab.NewPropertySelector("name", 0, symtab.PropText, nameVal))

	ob := BuildObject(s.u, obj)
	_ = ob

	s.u.Resolve()
	FinalizeFixups(s.u.Heap)
	s.u.Resolve()

	textOfs, ok := text.Offset()
	if !ok {
		t.Fatal("interned text node never got an offset")
	}

	fx := &anode.FixupTable{}
	s.u.Heap.CollectFixups(fx)

	// The property entry's own offset varies with heap layout, so
	// check the fixup set for *some* offset whose emitted word equals
	// the interned text's offset rather than a single fixed index.
	var buf bytes.Buffer
	if err := s.u.Heap.Emit(anode.NewSink(&buf, false)); err != nil {
		t.Fatalf("emit heap: %v", err)
	}
	found := false
	for _, ofs := range fx.Offsets {
		if ofs+1 >= len(buf.Bytes()) {
			continue
		}
		word := uint16(buf.Bytes()[ofs]) | uint16(buf.Bytes()[ofs+1])<<8
		if int(word) == textOfs {
			found = true
		}
	}
	if !found {
		t.Errorf("no fixup entry's word matches the interned text's offset %d (fixups: %v)", textOfs, fx.Offsets)
	}
}
