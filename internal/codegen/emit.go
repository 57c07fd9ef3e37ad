package codegen

import (
	"fmt"
	"io"

	"github.com/dr8co/sciasm/internal/anode"
)

// EmitHeap writes the heap stream's final bytes to w — script N's
// "N.hep" output file. Call only
// after Resolve and FinalizeFixups(u.Heap) have both run.
func (u *Unit) EmitHeap(w io.Writer) error {
	return u.Heap.Emit(anode.NewSink(w, u.BigEndian))
}

// EmitHunk writes the hunk stream's final bytes to w — script N's
// "N.scr" output file. Call only after Resolve and
// FinalizeFixups(u.Hunk) have both run.
func (u *Unit) EmitHunk(w io.Writer) error {
	return u.Hunk.Emit(anode.NewSink(w, u.BigEndian))
}

// List writes a full disassembly-style listing of both streams to
// sink — script N's "N.sl" output file produced under `-l`.
func (u *Unit) List(sink anode.ListSink) {
	sink.WriteLine("; heap")
	u.Heap.List(sink)
	sink.WriteLine("; hunk")
	u.Hunk.List(sink)
}

// writerListSink adapts an io.Writer to anode.ListSink, one line per
// call, for driving List into a plain "N.sl" text file.
type writerListSink struct{ w io.Writer }

func (s writerListSink) WriteLine(line string) { fmt.Fprintln(s.w, line) }

// NewWriterListSink wraps w as an anode.ListSink.
func NewWriterListSink(w io.Writer) anode.ListSink { return writerListSink{w: w} }
