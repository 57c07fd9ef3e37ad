package anode

import "fmt"

// Label marks a position in a code block for branches to target. A
// Label has zero size but still participates in offset assignment so
// that a Branch can compute a distance to it. Label numbering resets
// at the start of every code block, since listings read better with
// small local numbers than a single global counter.
type Label struct {
	posn
	// Num is this label's listing number within its owning code block.
	Num int
}

// NewLabel creates an unplaced label numbered num within its code
// block.
func NewLabel(num int) *Label { return &Label{Num: num} }

func (*Label) Size() int                  { return 0 }
func (l *Label) SetOffset(ofs int) int    { l.place(ofs); return ofs }
func (*Label) TryShrink() bool            { return false }
func (*Label) CollectFixups(*FixupTable)  {}
func (*Label) Emit(*Sink) error           { return nil }
func (l *Label) Contains(target Node) bool {
	t, ok := target.(*Label)
	return ok && t == l
}
func (l *Label) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s L%d:", fmtOffset(&l.posn), l.Num))
}
