package compiler

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/opcode"
	"github.com/dr8co/sciasm/internal/parsetree"
)

// compileIf lowers if/cond: for a plain
// `if` (one clause, no else) this reduces exactly to "compile test,
// branch-if-not-taken to ELSE, compile then-body, bind ELSE (== END)".
// Additional clauses (a lowered `cond`) chain the same shape, each
// needing its own branch-out label and a trailing jump to the common
// END once its body runs.
func (c *Compiler) compileIf(n *parsetree.If) {
	end := c.newLabel()
	for i, clause := range n.Clauses {
		isLast := i == len(n.Clauses)-1
		hasMore := !isLast || len(n.Else) > 0

		next := end
		if hasMore {
			next = c.newLabel()
		}

		c.compileExpr(clause.Test)
		c.branchTo(opcode.OpBnt, next)
		c.compileBody(clause.Body)

		if hasMore {
			c.branchTo(opcode.OpJmp, end)
			c.bindLabel(next)
		}
	}
	if len(n.Else) > 0 {
		c.compileBody(n.Else)
	}
	c.bindLabel(end)
}

// compileSwitch lowers switch/switchto.
// The scrutinee is pushed once; each case duplicates the stack top
// (OpDup pushes a second copy of it), compiles its comparison value
// into the accumulator,
// and emits an equality test — which pops the duplicated stack copy,
// leaving the original scrutinee on the stack for the next case. A
// final toss discards it once no case (or the fallthrough) is taken.
func (c *Compiler) compileSwitch(n *parsetree.Switch) {
	c.compileExpr(n.Scrutinee)
	c.emit(anode.NewPlain(opcode.OpPush))

	end := c.newLabel()
	for i, cs := range n.Cases {
		next := c.newLabel()
		c.emit(anode.NewPlain(opcode.OpDup))
		if n.SwitchTo {
			c.emit(anode.NewImm(opcode.OpLdImm, false, int32(i)))
		} else {
			c.compileExpr(cs.Value)
		}
		c.emit(anode.NewPlain(opcode.OpEq))
		c.branchTo(opcode.OpBnt, next)
		c.compileBody(cs.Body)
		c.branchTo(opcode.OpJmp, end)
		c.bindLabel(next)
	}
	c.bindLabel(end)
	c.emit(anode.NewPlain(opcode.OpToss))
}

// compileLoop lowers the while/repeat/for label
// patterns.
func (c *Compiler) compileLoop(n *parsetree.Loop) {
	switch n.Kind {
	case parsetree.LoopWhile:
		start, end := c.newLabel(), c.newLabel()
		c.pushLoop(start, end, start)
		c.bindLabel(start)
		c.compileExpr(n.Test)
		c.branchTo(opcode.OpBnt, end)
		c.compileBody(n.Body)
		c.branchTo(opcode.OpJmp, start)
		c.bindLabel(end)
		c.popLoop()

	case parsetree.LoopRepeat:
		start, end := c.newLabel(), c.newLabel()
		c.pushLoop(start, end, start)
		c.bindLabel(start)
		c.compileBody(n.Body)
		c.branchTo(opcode.OpJmp, start)
		c.bindLabel(end)
		c.popLoop()

	case parsetree.LoopFor:
		if n.Init != nil {
			c.compileExpr(n.Init)
		}
		start, cont, end := c.newLabel(), c.newLabel(), c.newLabel()
		c.pushLoop(start, end, cont)
		c.bindLabel(start)
		if n.Test != nil {
			c.compileExpr(n.Test)
			c.branchTo(opcode.OpBnt, end)
		}
		c.compileBody(n.Body)
		c.bindLabel(cont)
		if n.Update != nil {
			c.compileExpr(n.Update)
		}
		c.branchTo(opcode.OpJmp, start)
		c.bindLabel(end)
		c.popLoop()
	}
}

func (c *Compiler) compileBreakContinue(n *parsetree.BreakContinue) {
	frame, ok := c.loopAt(n.Depth)
	if !ok {
		c.Diag.Errorf(c.File, n.Line(), "break/continue depth %d exceeds enclosing loop nesting", n.Depth)
		return
	}
	target := frame.end
	if n.Continue {
		target = frame.cont
	}
	if n.Cond != nil {
		c.compileExpr(n.Cond)
		c.branchTo(opcode.OpBt, target)
		return
	}
	c.branchTo(opcode.OpJmp, target)
}
