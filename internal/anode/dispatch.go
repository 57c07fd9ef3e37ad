package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/forwardref"
)

// DispatchEntry is one slot of a module's public-export dispatch
// table: a bare word holding a ForwardRef'd target's offset, exactly
// like RefWord, except its fixup is conditional rather than automatic.
// A dispatch-table entry whose target lives in the heap contributes a
// fixup at the entry's offset — an exported procedure's entry (target
// in the hunk, alongside the table itself) needs none, since the
// loader relocates the hunk and heap streams independently and a
// same-stream offset is already correct relative
// to that stream's own load address.
type DispatchEntry struct {
	posn
	Target forwardref.Ref[Node]
	// Heap is the heap stream's root composite. A fixup is added only
	// when Heap.Contains reports the resolved target lives there.
	Heap  Node
	Label string
}

// NewDispatchEntry creates an unresolved dispatch-table slot. heap is
// the compilation unit's heap-stream root, consulted by CollectFixups
// once Target resolves.
func NewDispatchEntry(heap Node, label string) *DispatchEntry {
	return &DispatchEntry{Heap: heap, Label: label}
}

func (*DispatchEntry) Size() int                   { return 2 }
func (d *DispatchEntry) SetOffset(ofs int) int      { d.place(ofs); return ofs + 2 }
func (*DispatchEntry) TryShrink() bool              { return false }

func (d *DispatchEntry) CollectFixups(fx *FixupTable) {
	target, ok := d.Target.Value()
	if !ok || d.Heap == nil || !d.Heap.Contains(target) {
		return
	}
	selfOfs, _ := d.Offset()
	fx.Add(selfOfs)
}

// Emit writes the target's offset, or 0 for a slot the dispatch table
// grew to fill a gap but that no public export ever claimed — the
// dispatch table is a dense array indexed by public-export number, so
// an index with no export at all is a legitimate, silent zero rather
// than a diagnostic.
func (d *DispatchEntry) Emit(s *Sink) error {
	target, ok := d.Target.Value()
	if !ok {
		return s.WriteWord(0)
	}
	targetOfs, _ := target.Offset()
	return s.WriteWord(uint16(targetOfs))
}

func (d *DispatchEntry) Contains(n Node) bool { o, ok := n.(*DispatchEntry); return ok && o == d }
func (d *DispatchEntry) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t.word\t<dispatch %s>", fmtOffset(&d.posn), d.Label))
}
