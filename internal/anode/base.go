package anode

import "strconv"

// posn is embedded by every leaf node to provide the Offset/SetOffset
// bookkeeping every node shares: absent until layout assigns it,
// stable for the rest of the compile once the shrink fixpoint
// converges.
type posn struct {
	ofs int
	set bool
}

func (p *posn) Offset() (int, bool) { return p.ofs, p.set }

func (p *posn) place(ofs int) { p.ofs = ofs; p.set = true }

// fmtOffset renders a node's offset for listings, or "----" before
// layout has assigned one.
func fmtOffset(p *posn) string {
	if !p.set {
		return "----"
	}
	return strconv.Itoa(p.ofs)
}
