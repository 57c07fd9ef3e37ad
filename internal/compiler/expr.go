package compiler

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/opcode"
	"github.com/dr8co/sciasm/internal/parsetree"
	"github.com/dr8co/sciasm/internal/symtab"
)

// compileExpr compiles n, leaving its value in the accumulator —
// a read yields the value in the accumulator; a write consumes the
// top of the stack. Callers that need the value on the stack instead
// follow this with an explicit OpPush.
func (c *Compiler) compileExpr(n parsetree.Node) {
	switch v := n.(type) {
	case *parsetree.NumberLiteral:
		c.emit(anode.NewImm(opcode.OpLdImm, v.Value < 0, v.Value))
	case *parsetree.StringLiteral:
		c.compileStringLiteral(v)
	case *parsetree.SelectorLiteral:
		c.compileSelectorLiteralExpr(v)
	case *parsetree.VarRef:
		c.compileVarRead(v)
	case *parsetree.AddressOf:
		c.compileAddressOf(v)
	case *parsetree.ClassRef:
		c.compileClassRef(v)
	case *parsetree.ObjectRef:
		c.compileObjectRef(v)
	case *parsetree.SelfRef:
		c.emit(anode.NewPlain(opcode.OpLoadSelf))
	case *parsetree.Call:
		c.compileCall(v)
	case *parsetree.ExternCall:
		c.compileExternCall(v)
	case *parsetree.Send:
		c.compileSendNode(v)
	case *parsetree.Return:
		c.compileReturn(v)
	case *parsetree.UnaryOp:
		c.compileUnaryOp(v)
	case *parsetree.BinaryOp:
		c.compileBinaryOp(v)
	case *parsetree.NaryOp:
		c.compileNaryOp(v)
	case *parsetree.Comparison:
		c.compileComparison(v)
	case *parsetree.LogicalOp:
		c.compileLogicalOp(v)
	case *parsetree.Assign:
		c.compileAssign(v)
	case *parsetree.IncDec:
		c.compileIncDec(v)
	case *parsetree.If:
		c.compileIf(v)
	case *parsetree.Switch:
		c.compileSwitch(v)
	case *parsetree.Loop:
		c.compileLoop(v)
	case *parsetree.BreakContinue:
		c.compileBreakContinue(v)
	case *parsetree.Rest:
		c.Diag.Errorf(c.File, v.Line(), "&rest may only appear as the final argument of a call or send")
	default:
		c.Diag.Errorf(c.File, n.Line(), "internal error: unhandled expression node %T", n)
	}
}

// compileStringLiteral loads a string literal's absolute heap-stream
// offset into the accumulator. The value is the Text node's own
// offset — not an offset relative to the text region's start — and
// always contributes a fixup, since a text target always lives in the
// heap stream.
func (c *Compiler) compileStringLiteral(s *parsetree.StringLiteral) {
	text := c.Strings.Intern(s.Value)
	ref := anode.NewAddrRef("text")
	_ = ref.Target.Resolve(anode.Node(text))
	c.emit(ref)
}

func (c *Compiler) compileSelectorLiteralExpr(s *parsetree.SelectorLiteral) {
	num, ok := c.resolveSelectorNumber(s.Name)
	if !ok {
		c.Diag.Errorf(c.File, s.Line(), "undefined selector %q", s.Name)
		return
	}
	c.emit(anode.NewImm(opcode.OpLdImm, false, int32(num)))
}

// compileVarRead loads a variable or property into the accumulator.
// An indexed read compiles the index into the accumulator immediately
// before the access opcode, which reads it from there — the index is
// never pushed for a load.
func (c *Compiler) compileVarRead(v *parsetree.VarRef) {
	if v.Index != nil {
		c.compileExpr(v.Index)
	}
	c.emit(c.varAccessNode(opcode.AccessLoad, opcode.DstAcc, v))
}

func (c *Compiler) compileAddressOf(a *parsetree.AddressOf) {
	t := a.Target
	if t.Index != nil {
		c.compileExpr(t.Index)
	}
	if t.IsProperty {
		sel := c.propertySelector(t.Name, t.Line())
		c.emit(anode.NewEffectiveAddress(opcode.DstAcc, opcode.PropTag, t.Index != nil, sel))
		return
	}
	c.emit(anode.NewEffectiveAddress(opcode.DstAcc, c.accessClass(t.Class), t.Index != nil, c.varAddress(t)))
}

func (c *Compiler) compileClassRef(n *parsetree.ClassRef) {
	sym, ok := c.Syms.Resolve(n.Name)
	if !ok || sym.Kind != symtab.KindClass {
		c.Diag.Errorf(c.File, n.Line(), "undefined class %q", n.Name)
		return
	}
	c.emit(anode.NewImm(opcode.OpLdImm, false, int32(sym.Value)))
	c.emit(anode.NewPlain(opcode.OpClass))
}

func (c *Compiler) compileObjectRef(n *parsetree.ObjectRef) {
	sym, ok := c.Syms.Resolve(n.Name)
	if !ok || sym.Kind != symtab.KindObject {
		c.Diag.Errorf(c.File, n.Line(), "undefined object %q", n.Name)
		return
	}
	ref := anode.NewAddrRef("obj")
	chainRef(&ref.Target, &sym.Ref)
	c.emit(ref)
}

func (c *Compiler) compileReturn(n *parsetree.Return) {
	if n.Value != nil {
		c.compileExpr(n.Value)
	}
	c.emit(anode.NewPlain(opcode.OpRet))
}

func (c *Compiler) compileUnaryOp(u *parsetree.UnaryOp) {
	c.compileExpr(u.Operand)
	c.emit(anode.NewPlain(c.unaryOpcode(u.Operator)))
}

func (c *Compiler) compileBinaryOp(b *parsetree.BinaryOp) {
	c.compileExpr(b.Left)
	c.emit(anode.NewPlain(opcode.OpPush))
	c.compileExpr(b.Right)
	c.emit(anode.NewPlain(c.binaryOpcode(b.Operator)))
}

// compileNaryOp compiles a chain of left-to-right binary operations.
// No constant folding happens here, and internal/frontend does not
// fold either: an n-ary node is compiled exactly as given, whatever
// integer-literal operands it holds.
func (c *Compiler) compileNaryOp(n *parsetree.NaryOp) {
	if len(n.Operands) == 0 {
		return
	}
	c.compileExpr(n.Operands[0])
	op := c.binaryOpcode(n.Operator)
	for _, rhs := range n.Operands[1:] {
		c.emit(anode.NewPlain(opcode.OpPush))
		c.compileExpr(rhs)
		c.emit(anode.NewPlain(op))
	}
}

// compileComparison lowers a comparison chain: compile
// op0, push, compile op1, compare; for each further operand, branch
// out if the chain has already failed, push-prev the last comparand
// back, compile the next operand, compare again.
func (c *Compiler) compileComparison(cmp *parsetree.Comparison) {
	op := c.comparisonOpcode(cmp.Operator)
	c.compileExpr(cmp.Operands[0])
	c.emit(anode.NewPlain(opcode.OpPush))
	c.compileExpr(cmp.Operands[1])
	c.emit(anode.NewPlain(op))
	if len(cmp.Operands) == 2 {
		return
	}
	end := c.newLabel()
	for _, operand := range cmp.Operands[2:] {
		c.branchTo(opcode.OpBnt, end)
		c.emit(anode.NewPlain(opcode.OpPprev))
		c.compileExpr(operand)
		c.emit(anode.NewPlain(op))
	}
	c.bindLabel(end)
}

// compileLogicalOp lowers short-circuit and/or:
// `and` branches out on the first not-taken (false) operand, `or` on
// the first taken (true) one; the accumulator carries whichever
// operand's value decided (or ended) the chain.
func (c *Compiler) compileLogicalOp(l *parsetree.LogicalOp) {
	end := c.newLabel()
	branchOp := opcode.OpBnt
	if l.Operator == "or" {
		branchOp = opcode.OpBt
	}
	for i, operand := range l.Operands {
		c.compileExpr(operand)
		if i == len(l.Operands)-1 {
			break
		}
		c.branchTo(branchOp, end)
	}
	c.bindLabel(end)
}

// compileAssign stores into a variable or property. The value is
// compiled (and, for a compound assignment, combined with the old
// value) and pushed; an indexed store then compiles the index into
// the accumulator, where the store opcode reads it while popping the
// value off the stack.
func (c *Compiler) compileAssign(a *parsetree.Assign) {
	target := a.Target
	if a.Operator != "" && target.Index != nil {
		c.Diag.Errorf(c.File, a.Line(), "compound assignment to an indexed variable or property is not supported")
		return
	}
	if a.Operator == "" {
		c.compileExpr(a.Value)
	} else {
		c.emit(c.varAccessNode(opcode.AccessLoad, opcode.DstAcc, target))
		c.emit(anode.NewPlain(opcode.OpPush))
		c.compileExpr(a.Value)
		c.emit(anode.NewPlain(c.binaryOpcode(a.Operator)))
	}
	c.emit(anode.NewPlain(opcode.OpPush))
	if target.Index != nil {
		c.compileExpr(target.Index)
	}
	c.emit(c.varAccessNode(opcode.AccessStore, opcode.DstStack, target))
}

func (c *Compiler) compileIncDec(n *parsetree.IncDec) {
	target := n.Target
	if target.Index != nil {
		c.compileExpr(target.Index)
	}
	kind := opcode.AccessIncLoad
	if !n.Increment {
		kind = opcode.AccessDecLoad
	}
	c.emit(c.varAccessNode(kind, opcode.DstAcc, target))
}
