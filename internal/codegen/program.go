package codegen

import (
	"fmt"
	"io"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/compiler"
	"github.com/dr8co/sciasm/internal/diag"
	"github.com/dr8co/sciasm/internal/parsetree"
	"github.com/dr8co/sciasm/internal/symtab"
)

// Program orchestrates one compilation unit end to end: it owns the
// Unit's two streams, the Compiler that lowers parsetree bodies into
// them, and the symbol-table Stack every declaration and reference goes
// through. cmd/sciasm's driver builds one Program per source file,
// following exactly the sequence internal/codegen's own scenario tests
// exercise piece by piece (declare, compile, publish, Resolve,
// FinalizeFixups, Resolve again, Emit).
type Program struct {
	Unit     *Unit
	Compiler *compiler.Compiler
	Syms     *symtab.Stack
	Diag     *diag.Collector

	Vars symtab.VarList
}

// NewProgram creates an empty Program targeting dialect, with
// diagnostics reported to d. retainListing should be true whenever a
// listing (`-l`) is being produced: popped scopes stay reachable for
// listing symbolic names.
func NewProgram(dialect compiler.Dialect, bigEndian, debug bool, d *diag.Collector, retainListing bool) *Program {
	syms := symtab.NewStack(retainListing)
	pool := compiler.NewStringPool()
	u := NewUnit(dialect, bigEndian, pool)
	c := compiler.New(dialect, debug, d, syms, pool)
	return &Program{Unit: u, Compiler: c, Syms: syms, Diag: d}
}

// DeclareGlobal defines name as a global variable, allocating the next
// slot in the unit's variable block (script 0's globals, or any other
// script's locals).
func (p *Program) DeclareGlobal(name string, initial *symtab.LiteralValue) *symtab.Symbol {
	slot := p.Vars.Append(initial)
	sym := p.Syms.Global().Define(name, symtab.KindGlobalVar)
	sym.Value = slot
	return sym
}

// DeclareProcedure defines name as a not-yet-compiled procedure symbol
// in the global scope, so a forward call compiled before the procedure
// itself can still resolve once it is.
func (p *Program) DeclareProcedure(name string) *symtab.Symbol {
	return p.Syms.Global().Define(name, symtab.KindProcedure)
}

// DeclareDefine defines name as a compile-time constant, the `-D
// NAME[=VALUE]` pre-definition acting as if by a top-level define.
func (p *Program) DeclareDefine(name string, value int) *symtab.Symbol {
	sym := p.Syms.Global().Define(name, symtab.KindDefine)
	sym.Value = value
	return sym
}

// DeclareSelector defines name as a selector symbol carrying number —
// the global registration every property and method reference resolves
// against (internal/compiler's resolveSelectorNumber).
func (p *Program) DeclareSelector(name string, number uint16) *symtab.Symbol {
	sym := p.Syms.Global().Define(name, symtab.KindSelector)
	sym.Value = int(number)
	return sym
}

// DeclareClass defines name as a class symbol carrying its species
// number, so `(class Foo)` references and superclass lookups resolve.
func (p *Program) DeclareClass(name string, species uint16) *symtab.Symbol {
	sym := p.Syms.Global().Define(name, symtab.KindClass)
	sym.Value = int(species)
	return sym
}

// CompileProcedure compiles sym's body, publishes the result as the
// unit's code, resolves sym's own ForwardRef (unblocking any forward
// call already compiled against it), and, when publicIndex is >= 0,
// registers it in the dispatch table at that index.
func (p *Program) CompileProcedure(sym *symtab.Symbol, file string, baseTemp int, body []parsetree.Node, publicIndex int) *anode.Composite {
	block := p.Compiler.CompileProcedure(sym.Name, file, baseTemp, body)
	if err := sym.Ref.Resolve(anode.Node(block)); err != nil {
		p.Diag.Fatalf(file, 0, "procedure %q: %v", sym.Name, err)
	}
	p.Unit.AddProcedure(block)
	if publicIndex >= 0 {
		p.Unit.Disp.AddPublic(publicIndex, sym.Name, &sym.Ref)
	}
	return block
}

// CompileMethod compiles sel's body with obj as the current object,
// resolving sel's own Code ForwardRef — the reference
// internal/codegen's object_layout.go's AppendMethod chains its
// dispatch/heap entries from.
func (p *Program) CompileMethod(obj *symtab.Object, sel *symtab.Selector, file string, baseTemp int, body []parsetree.Node) *anode.Composite {
	block := p.Compiler.CompileMethod(obj, sel.Name, file, baseTemp, body)
	if err := sel.Code.Resolve(anode.Node(block)); err != nil {
		p.Diag.Fatalf(file, 0, "method %q on %s: %v", sel.Name, obj.Name, err)
	}
	p.Unit.AddProcedure(block)
	return block
}

// BuildObject lays out obj's heap property list and hunk object
// dictionary — see internal/codegen/object_layout.go.
func (p *Program) BuildObject(obj *symtab.Object) *ObjectBuilder {
	return BuildObject(p.Unit, obj)
}

// layoutVars appends one heap word per declared global/local slot to
// the unit's variable block, ahead of any other heap layout (see
// unit.go's heap layout doc: the variable block leads, then the
// object property list).
func (p *Program) layoutVars() {
	for i, slot := range p.Vars.Slots {
		name := fmt.Sprintf("var%d", i)
		if slot == nil {
			p.Unit.Vars.Append(anode.NewWord(0, name))
			continue
		}
		if !slot.IsText {
			p.Unit.Vars.Append(anode.NewWord(uint16(slot.Int), name))
			continue
		}
		entry := anode.NewDispatchEntry(p.Unit.Heap, name)
		target := slot.Text
		target.Register(func(n anode.Node) { _ = entry.Target.Resolve(n) })
		p.Unit.Vars.Append(entry)
	}
}

// CheckUnresolvedSymbols reports an error for every symbol tracked in
// the global scope (procedures, classes, objects) whose ForwardRef is
// still unresolved after the whole source file has been walked — the
// "undefined procedure / undefined object" check: a still-unresolved
// ref once the last parse symbol is defined is a program error.
// Calling this ahead of Emit turns what would otherwise be an
// emit-time error deep inside one ANode into a diagnostic naming the
// symbol directly.
func (p *Program) CheckUnresolvedSymbols(file string, symbols []*symtab.Symbol) {
	for _, sym := range symbols {
		if !sym.Ref.Resolved() {
			kind := "procedure"
			if sym.Kind == symtab.KindClass || sym.Kind == symtab.KindObject {
				kind = "object"
			}
			p.Diag.Errorf(file, 0, "undefined %s %q", kind, sym.Name)
		}
	}
}

// Finish lays out the variable block, runs the offset/shrink
// fixpoint, then collects and appends both streams' trailing fixup
// tables, re-resolving offsets once more so the
// newly appended fixup-table nodes themselves receive stable offsets.
// Call this once, after every procedure/method/object for the unit has
// been compiled and laid out, and before Emit*/List.
func (p *Program) Finish() {
	p.layoutVars()
	p.Unit.Resolve()
	FinalizeFixups(p.Unit.Heap)
	FinalizeFixups(p.Unit.Hunk)
	p.Unit.Resolve()
}

// EmitHeap writes the finished heap stream to w.
func (p *Program) EmitHeap(w io.Writer) error { return p.Unit.EmitHeap(w) }

// EmitHunk writes the finished hunk stream to w.
func (p *Program) EmitHunk(w io.Writer) error { return p.Unit.EmitHunk(w) }

// List writes a full listing of both streams to sink.
func (p *Program) List(sink anode.ListSink) { p.Unit.List(sink) }
