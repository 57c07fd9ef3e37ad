package anode

import "fmt"

// ObjectMarker anchors one object or class instance's position in the
// heap's property list (an object marker, then a property table).
// Like Label, it has zero size and exists purely to
// give AddrRef/RefWord/DispatchEntry something to target — an
// object-id load, a dispatch-table public export, or a superclass's
// species-to-instance reference all resolve to the marker rather than
// to the first property word, since the object id the VM deals with
// *is* this position.
type ObjectMarker struct {
	posn
	Name string
}

// NewObjectMarker creates an unplaced marker for the object or class
// named name.
func NewObjectMarker(name string) *ObjectMarker { return &ObjectMarker{Name: name} }

func (*ObjectMarker) Size() int                   { return 0 }
func (m *ObjectMarker) SetOffset(ofs int) int      { m.place(ofs); return ofs }
func (*ObjectMarker) TryShrink() bool              { return false }
func (*ObjectMarker) CollectFixups(*FixupTable)    {}
func (*ObjectMarker) Emit(*Sink) error              { return nil }
func (m *ObjectMarker) Contains(target Node) bool {
	t, ok := target.(*ObjectMarker)
	return ok && t == m
}
func (m *ObjectMarker) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s; object %s", fmtOffset(&m.posn), m.Name))
}
