package codegen

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/forwardref"
)

// DispatchTable is the hunk-resident array of public exports at the
// head of the code image — one anode.DispatchEntry per public index,
// each a relocatable word pointing at the exported procedure's or
// object's position. The table grows to cover the highest public
// index declared.
type DispatchTable struct {
	heap    anode.Node
	table   *anode.Composite
	entries []*anode.DispatchEntry
}

func newDispatchTable(heap anode.Node) *DispatchTable {
	return &DispatchTable{heap: heap, table: anode.NewComposite(anode.KindTable, "dispatch table")}
}

func (d *DispatchTable) entryAt(index int) *anode.DispatchEntry {
	for len(d.entries) <= index {
		e := anode.NewDispatchEntry(d.heap, "")
		d.entries = append(d.entries, e)
		d.table.Append(e)
	}
	return d.entries[index]
}

// AddPublic registers index as exporting a reference to the value
// ref eventually resolves to, growing the table with zero-valued gap
// entries as needed; a DispatchEntry tolerates an unresolved Target
// at emit time by writing a plain zero, so gap entries need no
// special casing.
func (d *DispatchTable) AddPublic(index int, label string, ref *forwardref.Ref[anode.Node]) {
	entry := d.entryAt(index)
	entry.Label = label
	ref.Register(func(n anode.Node) {
		_ = entry.Target.Resolve(n)
	})
}

// Entry returns the dispatch slot at index as a plain Node, growing
// the table if needed — used when a tagged method's property/dict
// entry must point at its dispatch slot rather than directly at its
// code block.
func (d *DispatchTable) Entry(index int) anode.Node { return d.entryAt(index) }

// Len reports the number of dispatch slots currently allocated.
func (d *DispatchTable) Len() int { return len(d.entries) }
