// Package anode implements the assembly-node graph: the intermediate
// representation of everything that will become bytes in the heap and
// hunk output streams.
//
// Rather than a deep class hierarchy rooted at a single virtual
// base, this package defines one small interface ([Node]) and a
// family of concrete struct types — one per shape of output byte —
// each implementing it directly, with no shared base struct beyond
// what Go's embedding gives for free.
package anode

import "io"

// Node is implemented by every assembly-graph element: opcodes,
// literal/data words, structural composites, and cross-references.
//
// Offset assignment happens in two passes: an initial
// SetOffset(0) walk that assigns every node a position assuming every
// size-variable node is in its long form, followed by a try-shrink
// loop that re-walks SetOffset after any node's TryShrink converts it
// to a shorter encoding. After the loop converges, every node's Size
// and Offset are stable for the rest of the compile (the
// invariants).
type Node interface {
	// Size returns the number of bytes this node will emit at its
	// current (possibly not yet final) encoding.
	Size() int

	// Offset returns the byte position assigned by the most recent
	// SetOffset call, and false if no SetOffset call has happened yet.
	Offset() (int, bool)

	// SetOffset stores ofs as this node's offset and returns
	// ofs + Size(). Composite nodes recurse over their children in
	// order.
	SetOffset(ofs int) int

	// TryShrink re-examines any size-variable payload (a branch
	// distance, an intra-module call distance) now that more offsets
	// are known, and converts it to a shorter encoding if it fits.
	// It returns true iff the node's Size() decreased. Composite
	// nodes OR the result over their children — any single shrink
	// anywhere requires another SetOffset pass.
	TryShrink() bool

	// CollectFixups reports every absolute-address word this node
	// will emit, by appending the word's stream-relative offset to
	// fx. Nodes with no absolute-address payload are no-ops.
	CollectFixups(fx *FixupTable)

	// Emit writes this node's bytes to w. Offset must already be
	// assigned and stable (the shrink fixpoint converged) before Emit
	// runs anywhere in the graph.
	Emit(w *Sink) error

	// Contains reports whether target is this node or appears anywhere
	// in its subtree. Used by listings and by diagnostics that need to
	// name the code block containing a given node.
	Contains(target Node) bool

	// List writes a human-readable line (or lines) describing this
	// node to sink. The default behavior for most leaf nodes is a
	// single disassembly-style line; composites also list their
	// children.
	List(sink ListSink)
}

// Optimizable is implemented by composites that host a peephole-
// optimizable opcode stream (code blocks). Everything else is a no-op
// for optimization purposes, so this is a separate, optional interface
// rather than a method on Node.
type Optimizable interface {
	// Optimize runs the peephole optimizer over this node's opcode
	// list to a fixpoint and reports whether anything changed.
	Optimize() bool
}

// ListSink receives listing output. A nil-op implementation is used
// whenever the `-l` listing flag is off, so every List method can run
// unconditionally without a feature check.
type ListSink interface {
	WriteLine(s string)
}

// DiscardListSink implements ListSink by discarding everything.
type DiscardListSink struct{}

// WriteLine implements ListSink.
func (DiscardListSink) WriteLine(string) {}

// FixupTable accumulates the stream-relative offsets of every
// absolute-address word emitted into one output stream (heap or
// hunk).
type FixupTable struct {
	Offsets []int
}

// Add records a fixup at the given stream-relative byte offset.
func (fx *FixupTable) Add(offset int) {
	fx.Offsets = append(fx.Offsets, offset)
}

// Sink is the byte-writing destination for Emit. It wraps an
// io.Writer with the endianness selected for this compilation unit
// (`-w`) so every multi-byte write across the whole graph
// uses one consistent byte order.
type Sink struct {
	w       io.Writer
	bigEndian bool
	offset  int
}

// NewSink wraps w for emission with the given endianness. bigEndian
// false selects the historical default (low-byte-first); true selects
// the `-w` flag's high-byte-first mode.
func NewSink(w io.Writer, bigEndian bool) *Sink {
	return &Sink{w: w, bigEndian: bigEndian}
}

// Offset returns the number of bytes written so far through this
// sink. It exists purely for sanity-checking Emit against the offsets
// SetOffset assigned; the authoritative position for fixups and
// listings is always the node's own Offset(), not this counter.
func (s *Sink) Offset() int { return s.offset }

// WriteByte writes a single byte.
func (s *Sink) WriteByte(b byte) error {
	_, err := s.w.Write([]byte{b})
	s.offset++
	return err
}

// WriteWord writes a 16-bit value in the sink's configured endianness.
func (s *Sink) WriteWord(v uint16) error {
	var buf [2]byte
	if s.bigEndian {
		buf[0] = byte(v >> 8)
		buf[1] = byte(v)
	} else {
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
	}
	_, err := s.w.Write(buf[:])
	s.offset += 2
	return err
}

// WriteBytes writes raw bytes verbatim (used for text literals and
// padding).
func (s *Sink) WriteBytes(b []byte) error {
	_, err := s.w.Write(b)
	s.offset += len(b)
	return err
}
