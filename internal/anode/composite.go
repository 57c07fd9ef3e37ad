package anode

import "fmt"

// Kind labels what a Composite structurally represents, purely for
// listings and for the driver's decision about which composites carry
// an optimizable opcode stream. It has no effect on Size/SetOffset/
// Emit, which treat every Composite the same: a flat, ordered sequence
// of children.
type Kind int

const (
	// KindGeneric is an unlabeled grouping — e.g. the top-level heap or
	// hunk stream itself.
	KindGeneric Kind = iota
	// KindCodeBlock is a procedure or method body's opcode stream: the
	// only kind of Composite the peephole optimizer ever runs over.
	KindCodeBlock
	// KindTable is an ordered list of data words with no opcode content
	// (a dispatch table, a property-dictionary selector list).
	KindTable
	// KindObject is an object or class instance's property table.
	KindObject
)

// OptimizeFunc rewrites a code block's child list, returning the new
// list and whether anything changed. The peephole package supplies
// this; anode stays ignorant of its rewrite rules to avoid an import
// cycle (peephole depends on anode, not the reverse).
type OptimizeFunc func([]Node) ([]Node, bool)

// Composite is an ordered, named sequence of child nodes: a code
// block, a table, an object's property list, or the top-level heap or
// hunk stream that holds them all. One struct serves every structural
// grouping; Kind and an optional optimizer are the only things that
// vary.
type Composite struct {
	posn
	Kind     Kind
	Comment  string
	Children []Node
	optimize OptimizeFunc
}

// NewComposite creates an empty composite of the given kind.
func NewComposite(kind Kind, comment string) *Composite {
	return &Composite{Kind: kind, Comment: comment}
}

// SetOptimizer installs the peephole rewrite function this composite's
// Optimize calls run to a fixpoint. Only meaningful for KindCodeBlock;
// a composite with no optimizer installed is simply not Optimizable in
// any way that changes anything.
func (c *Composite) SetOptimizer(fn OptimizeFunc) { c.optimize = fn }

// Append adds n to the end of the child list.
func (c *Composite) Append(n Node) { c.Children = append(c.Children, n) }

// InsertBefore inserts n immediately before the child at index i,
// shifting the rest along. The expression compiler does not use it: it
// appends nodes in compiled order and backfills a MutableImm arg count
// in place.
func (c *Composite) InsertBefore(i int, n Node) {
	c.Children = append(c.Children, nil)
	copy(c.Children[i+1:], c.Children[i:])
	c.Children[i] = n
}

// Iterate returns the child list in order. Callers must not retain a
// reference across a later Append/InsertBefore, which may reallocate.
func (c *Composite) Iterate() []Node { return c.Children }

// Find returns the first direct or nested child for which pred reports
// true, depth-first.
func (c *Composite) Find(pred func(Node) bool) (Node, bool) {
	for _, child := range c.Children {
		if pred(child) {
			return child, true
		}
		if nested, ok := child.(*Composite); ok {
			if found, ok := nested.Find(pred); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func (c *Composite) Size() int {
	n := 0
	for _, child := range c.Children {
		n += child.Size()
	}
	return n
}

func (c *Composite) SetOffset(ofs int) int {
	c.place(ofs)
	cur := ofs
	for _, child := range c.Children {
		cur = child.SetOffset(cur)
	}
	return cur
}

// TryShrink recurses over every child, OR-ing their shrink results —
// any single child shrinking means the whole graph needs another
// SetOffset pass before distances are trustworthy again. It does not
// run the peephole optimizer; that happens once, up front, via
// Optimize (see OptimizeAll and Resolve).
func (c *Composite) TryShrink() bool {
	shrunk := false
	for _, child := range c.Children {
		if child.TryShrink() {
			shrunk = true
		}
	}
	return shrunk
}

func (c *Composite) CollectFixups(fx *FixupTable) {
	for _, child := range c.Children {
		child.CollectFixups(fx)
	}
}

func (c *Composite) Emit(s *Sink) error {
	for _, child := range c.Children {
		if err := child.Emit(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) Contains(target Node) bool {
	if Node(c) == target {
		return true
	}
	for _, child := range c.Children {
		if child.Contains(target) {
			return true
		}
	}
	return false
}

func (c *Composite) List(sink ListSink) {
	if c.Comment != "" {
		sink.WriteLine(fmt.Sprintf("%s; %s", fmtOffset(&c.posn), c.Comment))
	}
	for _, child := range c.Children {
		child.List(sink)
	}
}

// Optimize runs the installed OptimizeFunc over this composite's own
// child list to a fixpoint. It does not descend into nested
// composites — OptimizeAll does that, calling Optimize on every
// Optimizable composite in the tree.
func (c *Composite) Optimize() bool {
	if c.optimize == nil {
		return false
	}
	changedAny := false
	for {
		next, changed := c.optimize(c.Children)
		if !changed {
			break
		}
		c.Children = next
		changedAny = true
	}
	return changedAny
}

// OptimizeAll walks n's subtree and runs Optimize on every composite
// that has one installed, innermost first. It reports whether any
// composite changed.
func OptimizeAll(n Node) bool {
	c, ok := n.(*Composite)
	if !ok {
		return false
	}
	changed := false
	for _, child := range c.Children {
		if OptimizeAll(child) {
			changed = true
		}
	}
	if c.Optimize() {
		changed = true
	}
	return changed
}

// Resolve runs the full layout algorithm over root: optimize
// every code block once, assign initial offsets assuming every
// size-variable node is in its long form, then alternate TryShrink and
// SetOffset(0) until a pass produces no further shrink. After Resolve
// returns, every node's Offset and Size are final for the rest of the
// compile.
func Resolve(root Node) {
	OptimizeAll(root)
	root.SetOffset(0)
	for root.TryShrink() {
		root.SetOffset(0)
	}
}
