package frontend

import (
	"bytes"
	"testing"

	"github.com/dr8co/sciasm/internal/codegen"
	"github.com/dr8co/sciasm/internal/compiler"
	"github.com/dr8co/sciasm/internal/diag"
)

// unitJSON is a small but representative unit: a global with a text
// initial value, declared selectors, a class with a property and a
// local method, an instance of it, and two procedures where the first
// forward-calls the second.
const unitJSON = `{
	"script": 7,
	"globals": [
		{"name": "score", "value": 0},
		{"name": "title", "text": "hello", "isText": true}
	],
	"selectors": [
		{"name": "name", "number": 20},
		{"name": "x", "number": 3},
		{"name": "doit", "number": 8}
	],
	"classes": [
		{
			"name": "Act",
			"species": 2,
			"selectors": [
				{"name": "x", "value": 5},
				{"name": "doit", "method": true, "proc": {"name": "doit", "body": [
					{"op": "return", "value": {"op": "prop", "name": "x"}}
				]}}
			]
		}
	],
	"objects": [
		{"name": "ego", "species": 2, "superclass": "Act", "selectors": [
			{"name": "x", "value": 9}
		]}
	],
	"procedures": [
		{"name": "a", "public": 0, "body": [
			{"op": "call", "callee": "b", "args": [{"op": "num", "int": 1}]}
		]},
		{"name": "b", "body": [
			{"op": "return", "value": {"op": "num", "int": 42}}
		]}
	]
}`

func buildUnit(t *testing.T, opts Options) (*codegen.Program, *Result, *diag.Collector) {
	t.Helper()
	unit, err := Decode([]byte(unitJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if unit.Script != 7 {
		t.Fatalf("script number decoded as %d, want 7", unit.Script)
	}
	d := diag.NewCollector(nil)
	p := codegen.NewProgram(compiler.SCI11, false, false, d, false)
	res, err := Build(p, unit, "unit.json", opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p, res, d
}

func emitBoth(t *testing.T, p *codegen.Program) ([]byte, []byte) {
	t.Helper()
	var heap, hunk bytes.Buffer
	if err := p.EmitHeap(&heap); err != nil {
		t.Fatalf("EmitHeap: %v", err)
	}
	if err := p.EmitHunk(&hunk); err != nil {
		t.Fatalf("EmitHunk: %v", err)
	}
	return heap.Bytes(), hunk.Bytes()
}

func TestBuildResolvesForwardCalls(t *testing.T) {
	p, res, d := buildUnit(t, Options{})
	p.CheckUnresolvedSymbols("unit.json", res.Symbols)
	if d.ErrorCount() != 0 {
		t.Fatalf("expected a clean build, got %d errors: %v", d.ErrorCount(), d.Items())
	}
	for _, sym := range res.Symbols {
		if !sym.Ref.Resolved() {
			t.Errorf("symbol %q never resolved", sym.Name)
		}
	}
}

func TestBuildLinksClassForest(t *testing.T) {
	_, res, _ := buildUnit(t, Options{})
	if len(res.Classes) != 1 || len(res.Objects) != 1 {
		t.Fatalf("expected 1 class and 1 object, got %d and %d", len(res.Classes), len(res.Objects))
	}
	act, ego := res.Classes[0], res.Objects[0]
	if ego.Parent != act {
		t.Errorf("ego's parent is %v, want Act", ego.Parent)
	}
	if act.FirstChild != ego {
		t.Errorf("Act's first child is %v, want ego", act.FirstChild)
	}
	if x := ego.FindSelector("x"); x == nil || x.InitialValue.Int != 9 {
		t.Errorf("ego's x override lost: %+v", x)
	}
}

func TestBuildAutoNamesObjects(t *testing.T) {
	_, res, _ := buildUnit(t, Options{AutoName: true})
	ego := res.Objects[0]
	name := ego.FindSelector("name")
	if name == nil {
		t.Fatal("expected an auto-generated name property on ego")
	}
	if name.Number != 20 {
		t.Errorf("auto-generated name uses selector %d, want 20", name.Number)
	}
	if !name.InitialValue.IsText {
		t.Error("auto-generated name should be a text property")
	}
}

func TestBuildAutoNameSuppressed(t *testing.T) {
	_, res, _ := buildUnit(t, Options{AutoName: false})
	if res.Objects[0].FindSelector("name") != nil {
		t.Error("name property generated despite AutoName being off")
	}
}

// Determinism across whole runs: building and emitting the same unit
// twice yields byte-identical heap and hunk streams.
func TestBuildDeterministic(t *testing.T) {
	run := func() ([]byte, []byte) {
		p, _, _ := buildUnit(t, Options{AutoName: true})
		p.Finish()
		return emitBoth(t, p)
	}
	heap1, hunk1 := run()
	heap2, hunk2 := run()
	if !bytes.Equal(heap1, heap2) {
		t.Error("heap streams differ across identical runs")
	}
	if !bytes.Equal(hunk1, hunk2) {
		t.Error("hunk streams differ across identical runs")
	}
	if len(heap1) == 0 || len(hunk1) == 0 {
		t.Error("expected non-empty output streams")
	}
}

func TestBuildImplicitSelectorInstall(t *testing.T) {
	const withUnknown = `{
		"script": 1,
		"selectors": [{"name": "x", "number": 3}],
		"classes": [{"name": "C", "species": 1, "selectors": [
			{"name": "mystery", "value": 1}
		]}]
	}`
	unit, err := Decode([]byte(withUnknown))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d := diag.NewCollector(nil)
	p := codegen.NewProgram(compiler.SCI11, false, false, d, false)
	if _, err := Build(p, unit, "unit.json", Options{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.WarningCount() != 1 {
		t.Fatalf("expected 1 implicit-install warning, got %d", d.WarningCount())
	}
	sym, ok := p.Syms.Global().Resolve("mystery")
	if !ok {
		t.Fatal("implicitly installed selector not defined")
	}
	if sym.Value != 4 {
		t.Errorf("implicit selector numbered %d, want 4 (one past the highest declared)", sym.Value)
	}
}
