// Package codegen assembles one compilation unit's heap and hunk
// ANode graphs into their final byte streams: the fixed stream
// headers, the dispatch table, per-object property/dictionary layout,
// the offset/shrink fixpoint, and fixup-table collection and
// emission.
package codegen

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/compiler"
)

// Unit owns one compilation unit's two output streams and the
// structural composites within them that BuildObject, AddProcedure,
// and the dispatch table populate as compilation proceeds.
//
// Hunk layout: a word reserved for the heap's load-relative pointer,
// a word reserved for the far-text flag, the dispatch table, the
// object dictionary list, then code.
//
// Heap layout: the variable block, the object property list, a
// terminating zero word, then the text region.
type Unit struct {
	Dialect   compiler.Dialect
	BigEndian bool

	Heap *anode.Composite
	Hunk *anode.Composite

	Vars     *anode.Composite
	ObjProps *anode.Composite
	Text     *anode.Composite

	HeapPtr  *anode.Word
	FarText  *anode.Word
	Disp     *DispatchTable
	ObjDict  *anode.Composite
	CodeList *anode.Composite

	Strings *compiler.StringPool
}

// NewUnit creates an empty unit targeting dialect, wired to the given
// string pool's text region for the heap's text table.
func NewUnit(dialect compiler.Dialect, bigEndian bool, strings *compiler.StringPool) *Unit {
	u := &Unit{Dialect: dialect, BigEndian: bigEndian, Strings: strings}

	u.Hunk = anode.NewComposite(anode.KindGeneric, "hunk")
	u.HeapPtr = anode.NewWord(0, "heap pointer")
	u.FarText = anode.NewWord(0, "far text flag")
	u.Hunk.Append(u.HeapPtr)
	u.Hunk.Append(u.FarText)

	u.Heap = anode.NewComposite(anode.KindGeneric, "heap")

	u.Disp = newDispatchTable(u.Heap)
	u.Hunk.Append(u.Disp.table)

	u.ObjDict = anode.NewComposite(anode.KindTable, "object dictionary list")
	u.Hunk.Append(u.ObjDict)

	u.CodeList = anode.NewComposite(anode.KindTable, "code")
	u.Hunk.Append(u.CodeList)

	u.Vars = anode.NewComposite(anode.KindTable, "vars")
	u.Heap.Append(u.Vars)

	u.ObjProps = anode.NewComposite(anode.KindTable, "object properties")
	u.Heap.Append(u.ObjProps)
	u.Heap.Append(anode.NewWord(0, "end of properties"))

	u.Text = strings.Region()
	u.Heap.Append(u.Text)

	return u
}

// AddProcedure appends a compiled procedure or method's code block to
// the unit's code list.
func (u *Unit) AddProcedure(block *anode.Composite) { u.CodeList.Append(block) }

// Resolve runs the offset/shrink fixpoint over the hunk (the only
// stream holding optimizable code blocks and size-variable branches/
// calls) and assigns final offsets to the heap: the heap's own nodes
// never shrink, and their offsets depend on nothing in the hunk, so a
// single pass suffices once the hunk has converged.
func (u *Unit) Resolve() {
	anode.Resolve(u.Hunk)
	u.Heap.SetOffset(0)
}
