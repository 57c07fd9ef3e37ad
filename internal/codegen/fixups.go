package codegen

import "github.com/dr8co/sciasm/internal/anode"

// FinalizeFixups appends one output stream's trailing fixup table: an
// optional one-byte pad to reach an even offset, a count word, then
// that many stream-relative offset words (pad-if-odd, a count word,
// a word per collected fixup).
//
// stream must already have stable offsets — call this after
// Unit.Resolve, once per stream (heap and hunk each get their own
// table, collected independently: a fixup collected while walking the
// heap is a heap-stream offset, never a hunk one, and vice versa).
// FinalizeFixups appends its own trailing nodes to stream and then
// re-runs SetOffset(0) so they receive real offsets — appending after
// every existing child means no previously assigned offset moves.
func FinalizeFixups(stream *anode.Composite) {
	fx := &anode.FixupTable{}
	stream.CollectFixups(fx)

	if stream.Size()%2 != 0 {
		stream.Append(anode.NewPadding(1))
	}

	stream.Append(anode.NewWord(uint16(len(fx.Offsets)), "fixup count"))
	for _, ofs := range fx.Offsets {
		stream.Append(anode.NewWord(uint16(ofs), "fixup"))
	}

	stream.SetOffset(0)
}
