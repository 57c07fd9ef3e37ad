// Package peephole implements the single-forward-pass rewrite rules
// over a code block's opcode list, tracking the
// abstract (accSource, accValue, stackTopSource, stackTopValue) state
// the table's guards are written against. internal/compiler installs
// Rewrite as the anode.OptimizeFunc on every code-block Composite it
// builds; Composite.Optimize loops it to a fixpoint.
package peephole

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/opcode"
)

// source tags where the value currently sitting in the accumulator or
// on the stack top came from.
type source int

const (
	srcUnknown source = iota
	srcImmediate
	srcProp
	srcLocalSelf
	srcVar
)

type varKey struct {
	class opcode.AccessClass
	addr  uint16
}

type slot struct {
	src   source
	imm   int32
	prop  uint16
	vr    varKey
}

func (s slot) matchesImm(v int32) bool  { return s.src == srcImmediate && s.imm == v }
func (s slot) matchesProp(n uint16) bool { return s.src == srcProp && s.prop == n }
func (s slot) matchesVar(k varKey) bool  { return s.src == srcVar && s.vr == k }

// Rewrite performs one forward pass over nodes, applying every
// applicable rewrite, and reports whether
// anything changed. Composite.Optimize calls this repeatedly until a
// pass changes nothing.
func Rewrite(nodes []anode.Node) ([]anode.Node, bool) {
	out := make([]anode.Node, 0, len(nodes))
	var acc, top slot
	changed := false

	invalidate := func() { acc = slot{}; top = slot{} }

	i := 0
	for i < len(nodes) {
		n := nodes[i]

		switch v := n.(type) {
		case *anode.Imm:
			if v.Op == opcode.OpConst {
				switch {
				case v.Value == 0:
					out = append(out, anode.NewPlain(opcode.OpPush0))
					changed = true
					top = slot{src: srcImmediate, imm: 0}
					i++
					continue
				case v.Value == 1:
					out = append(out, anode.NewPlain(opcode.OpPush1))
					changed = true
					top = slot{src: srcImmediate, imm: 1}
					i++
					continue
				case v.Value == 2:
					out = append(out, anode.NewPlain(opcode.OpPush2))
					changed = true
					top = slot{src: srcImmediate, imm: 2}
					i++
					continue
				case acc.matchesImm(v.Value):
					out = append(out, anode.NewPlain(opcode.OpPush))
					changed = true
					top = slot{src: srcImmediate, imm: v.Value}
					i++
					continue
				case top.matchesImm(v.Value):
					out = append(out, anode.NewPlain(opcode.OpDup))
					changed = true
					i++
					continue
				}
			}

			if v.Op == opcode.OpLdImm {
				if i+1 < len(nodes) {
					if next, ok := nodes[i+1].(*anode.Plain); ok && next.Op == opcode.OpPush {
						out = append(out, anode.NewImm(opcode.OpConst, v.Signed, v.Value))
						changed = true
						top = slot{src: srcImmediate, imm: v.Value}
						i += 2
						continue
					}
				}
				if acc.matchesImm(v.Value) {
					changed = true
					i++
					continue
				}
			}

		case *anode.Plain:
			if v.Op == opcode.OpRet && i+1 < len(nodes) {
				if next, ok := nodes[i+1].(*anode.Plain); ok && next.Op == opcode.OpRet {
					out = append(out, v)
					changed = true
					i += 2
					invalidate()
					continue
				}
			}
			if v.Op == opcode.OpLoadSelf && i+1 < len(nodes) {
				switch next := nodes[i+1].(type) {
				case *anode.Plain:
					if next.Op == opcode.OpPush {
						out = append(out, anode.NewPlain(opcode.OpPushSelf))
						changed = true
						top = slot{src: srcLocalSelf}
						i += 2
						continue
					}
				case *anode.SendOp:
					if next.Op == opcode.OpSend {
						out = append(out, anode.NewSelfSendFromSend(next))
						changed = true
						i += 2
						invalidate()
						continue
					}
				}
			}

		case *anode.VarAccess:
			if v.Kind == opcode.AccessLoad && !v.Indexed {
				key := varKey{class: v.Class, addr: v.Address}
				isProp := v.Class == opcode.PropTag

				if v.Dst == opcode.DstAcc && i+1 < len(nodes) {
					if next, ok := nodes[i+1].(*anode.Plain); ok && next.Op == opcode.OpPush && accDead(nodes, i+2) {
						fused := *v
						fused.Dst = opcode.DstStack
						out = append(out, &fused)
						changed = true
						if isProp {
							top = slot{src: srcProp, prop: v.Address}
						} else {
							top = slot{src: srcVar, vr: key}
						}
						i += 2
						continue
					}
				}

				if v.Dst == opcode.DstAcc {
					deleted := (isProp && acc.matchesProp(v.Address)) || (!isProp && acc.matchesVar(key))
					if deleted {
						changed = true
						i++
						continue
					}
				}

				if v.Dst == opcode.DstStack {
					holds := (isProp && acc.matchesProp(v.Address)) || (!isProp && acc.matchesVar(key))
					if holds {
						out = append(out, anode.NewPlain(opcode.OpPush))
						changed = true
						if isProp {
							top = slot{src: srcProp, prop: v.Address}
						} else {
							top = slot{src: srcVar, vr: key}
						}
						i++
						continue
					}
					topHolds := (isProp && top.matchesProp(v.Address)) || (!isProp && top.matchesVar(key))
					if topHolds {
						out = append(out, anode.NewPlain(opcode.OpDup))
						changed = true
						i++
						continue
					}
				}
			}

		case *anode.Branch:
			if rewritten := chaseBranch(v, nodes); rewritten != nil {
				out = append(out, rewritten)
				changed = true
				invalidate()
				i++
				continue
			}
		}

		out = append(out, n)
		updateState(&acc, &top, n, &invalidate)
		i++
	}

	return out, changed
}

// updateState advances the abstract acc/top slots past n when none of
// Rewrite's special cases consumed it. Branches, calls, sends, and
// labels invalidate both slots;
// everything else conservatively invalidates too, except the handful
// of shapes Rewrite itself already threads through above.
func updateState(acc, top *slot, n anode.Node, invalidate *func()) {
	switch v := n.(type) {
	case *anode.Imm:
		if v.Op == opcode.OpLdImm {
			*acc = slot{src: srcImmediate, imm: v.Value}
		} else {
			*top = slot{src: srcImmediate, imm: v.Value}
		}
	case *anode.VarAccess:
		if v.Kind == opcode.AccessLoad && v.Dst == opcode.DstAcc {
			if v.Class == opcode.PropTag {
				*acc = slot{src: srcProp, prop: v.Address}
			} else {
				*acc = slot{src: srcVar, vr: varKey{class: v.Class, addr: v.Address}}
			}
			return
		}
		(*invalidate)()
	case *anode.Label, *anode.Branch, *anode.Call, *anode.ExternCall, *anode.SendOp:
		(*invalidate)()
	default:
		(*invalidate)()
	}
}

// accDead is the accumulator-liveness forward scan:
// it stops at the first op that reads the accumulator (live), writes
// it without reading (dead), or changes control flow (live,
// conservatively).
func accDead(nodes []anode.Node, from int) bool {
	for i := from; i < len(nodes); i++ {
		switch v := nodes[i].(type) {
		case *anode.Label, *anode.Branch, *anode.Call, *anode.ExternCall, *anode.SendOp:
			return false
		case *anode.VarAccess:
			if v.Kind == opcode.AccessLoad && v.Dst == opcode.DstAcc {
				return true
			}
			return false
		case *anode.Imm:
			if v.Op == opcode.OpLdImm {
				return true
			}
			continue
		case *anode.Plain:
			switch v.Op {
			case opcode.OpPush, opcode.OpPop, opcode.OpDup, opcode.OpToss, opcode.OpPush0, opcode.OpPush1, opcode.OpPush2:
				continue
			case opcode.OpRet:
				return false
			default:
				return false
			}
		default:
			continue
		}
	}
	return true
}

// chaseBranch implements the jump-to-jump table row: if b targets a
// Label immediately followed (skipping further labels) by an
// unconditional jmp, or by another branch of the same opcode, whose
// own target is already resolved, b can target that downstream branch's
// target directly instead. Returns nil when no rewrite applies.
func chaseBranch(b *anode.Branch, nodes []anode.Node) *anode.Branch {
	target, ok := b.Target.Value()
	if !ok {
		return nil
	}
	label, ok := target.(*anode.Label)
	if !ok {
		return nil
	}
	idx := indexOf(nodes, anode.Node(label))
	if idx < 0 {
		return nil
	}
	j := idx + 1
	for j < len(nodes) {
		if _, ok := nodes[j].(*anode.Label); ok {
			j++
			continue
		}
		break
	}
	if j >= len(nodes) {
		return nil
	}
	downstream, ok := nodes[j].(*anode.Branch)
	if !ok {
		return nil
	}
	if downstream.Op != opcode.OpJmp && downstream.Op != b.Op {
		return nil
	}
	finalTarget, ok := downstream.Target.Value()
	if !ok {
		return nil
	}
	rewritten := anode.NewBranch(b.Op)
	if err := rewritten.Target.Resolve(finalTarget); err != nil {
		return nil
	}
	return rewritten
}

func indexOf(nodes []anode.Node, target anode.Node) int {
	for i, n := range nodes {
		if n == target {
			return i
		}
	}
	return -1
}
