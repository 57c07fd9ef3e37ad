package compiler

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/opcode"
	"github.com/dr8co/sciasm/internal/parsetree"
)

// restOf reports the trailing *parsetree.Rest in args, if any —
// &rest forwarding is always the suffix of a call's or send's
// argument list.
func restOf(args []parsetree.Node) *parsetree.Rest {
	if len(args) == 0 {
		return nil
	}
	r, ok := args[len(args)-1].(*parsetree.Rest)
	if !ok {
		return nil
	}
	return r
}

// compileArgList compiles and pushes a call's argument list, pushing
// the arg-count word (2 x number of arguments) first — the
// "push immediate zero arg count, compile arguments, backfill the
// immediate" convention. A trailing &rest forwards the rest of this
// procedure's own incoming arguments instead, computing the final
// count at runtime since it isn't known until the enclosing call runs.
func (c *Compiler) compileArgList(args []parsetree.Node) {
	if rest := restOf(args); rest != nil {
		prefix := args[:len(args)-1]
		c.emitRestArgCount(rest, len(prefix))
		for _, a := range prefix {
			c.compileExpr(a)
			c.emit(anode.NewPlain(opcode.OpPush))
		}
		c.emitRestForward(rest)
		return
	}

	argCount := anode.NewMutableImm(opcode.OpConst, c.argCountWidth(), 0)
	c.emit(argCount)
	n := 0
	for _, a := range args {
		c.compileExpr(a)
		c.emit(anode.NewPlain(opcode.OpPush))
		n++
	}
	argCount.SetValue(uint16(2 * n))
}

// emitRestArgCount pushes the dynamic total argument-byte count ahead
// of a call whose argument list ends in &rest: the enclosing
// procedure/method's own actual incoming argument count (always
// available at parameter slot 0) minus the forwarded range's start,
// plus the statically-known prefix length, doubled to match the
// "2 x number of arguments" convention every other call/send uses.
func (c *Compiler) emitRestArgCount(rest *parsetree.Rest, staticArgs int) {
	c.emit(anode.NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassParam, false, 0))
	c.emitBinaryConst(opcode.OpSub, int32(rest.From))
	c.emitBinaryConst(opcode.OpAdd, int32(staticArgs))
	c.emitBinaryConst(opcode.OpMul, 2)
	c.emit(anode.NewPlain(opcode.OpPush))
}

// emitRestForward compiles a runtime loop pushing paramSlot[i] for i
// from rest.From up to the enclosing procedure's actual argument
// count, using a compiler-allocated temp as the loop counter — the
// only way to forward a statically-unknown number of trailing
// arguments through this VM's push-then-call convention.
func (c *Compiler) emitRestForward(rest *parsetree.Rest) {
	i := c.allocTemp()
	c.emit(anode.NewImm(opcode.OpLdImm, false, int32(rest.From)))
	c.emitStoreTemp(i)

	start, end := c.newLabel(), c.newLabel()
	c.bindLabel(start)

	c.emit(anode.NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassParam, false, 0))
	c.emitBinaryTemp(opcode.OpSub, i)
	c.branchTo(opcode.OpBnt, end)

	c.emitLoadTemp(i)
	c.emit(anode.NewVarAccess(opcode.AccessLoad, opcode.DstStack, opcode.ClassParam, true, 0))

	c.emitLoadTemp(i)
	c.emitBinaryConst(opcode.OpAdd, 1)
	c.emitStoreTemp(i)
	c.branchTo(opcode.OpJmp, start)
	c.bindLabel(end)
}

func (c *Compiler) compileCall(call *parsetree.Call) {
	c.compileArgList(call.Args)
	callNode := anode.NewCall(opcode.OpCall, call.Callee)
	if sym, ok := c.Syms.Resolve(call.Callee); ok {
		chainRef(&callNode.Target, &sym.Ref)
	} else {
		c.Diag.Errorf(c.File, call.Line(), "undefined procedure %q", call.Callee)
	}
	c.emit(callNode)
}

// compileExternCall compiles a call to a procedure outside this
// compilation unit. Unlike a local Call, its argument count is a fixed
// field on the anode.ExternCall rather than a backfillable MutableImm,
// so &rest forwarding — whose final count can only be known at
// runtime — isn't representable here; it is diagnosed instead.
func (c *Compiler) compileExternCall(e *parsetree.ExternCall) {
	if restOf(e.Args) != nil {
		c.Diag.Errorf(c.File, e.Line(), "&rest forwarding is not supported in an external call's argument list")
	}
	n := 0
	for _, a := range e.Args {
		if _, ok := a.(*parsetree.Rest); ok {
			continue
		}
		c.compileExpr(a)
		c.emit(anode.NewPlain(opcode.OpPush))
		n++
	}
	kind := anode.ExternKernel
	switch e.Kind {
	case parsetree.ExternModuleNumber:
		kind = anode.ExternModuleNumber
	case parsetree.ExternOtherModule:
		kind = anode.ExternOtherModule
	}
	c.emit(anode.NewExternCall(kind, e.Module, e.Entry, uint16(2*n), c.argCountWidth()))
}

// compileSendNode compiles an ordinary or self send: every message's
// selector, arg count, and arguments first, then the receiver into
// the accumulator immediately ahead of the send opcode that dispatches
// on it. A receiverless self send therefore emits its self-id load
// directly adjacent to the send, where the peephole optimizer fuses
// the pair into a single self-send opcode.
func (c *Compiler) compileSendNode(s *parsetree.Send) {
	if s.Super {
		c.compileSuperSend(s)
		return
	}
	total := c.compileMessages(s.Messages)
	if s.Receiver != nil {
		c.compileExpr(s.Receiver)
	} else {
		c.emit(anode.NewPlain(opcode.OpLoadSelf))
	}
	c.emit(anode.NewSend(opcode.OpSend, total))
}

func (c *Compiler) compileSuperSend(s *parsetree.Send) {
	total := c.compileMessages(s.Messages)
	var species uint16
	if sym, ok := c.Syms.Resolve(s.Superclass); ok {
		species = uint16(sym.Value)
	} else {
		c.Diag.Errorf(c.File, s.Line(), "undefined superclass %q", s.Superclass)
	}
	c.emit(anode.NewSuperSend(species, total))
}

// compileSelector compiles a message's selector: a SelectorLiteral
// resolves directly to its number, anything else is a computed
// expression whose value the VM reads at send time.
func (c *Compiler) compileSelector(sel parsetree.Node) {
	if lit, ok := sel.(*parsetree.SelectorLiteral); ok {
		c.compileSelectorLiteralExpr(lit)
		return
	}
	c.compileExpr(sel)
}

// compileMessages compiles every message of a send in sequence —
// selector, backfilled arg count, arguments — and returns the total
// argument-byte count the trailing SendOp carries. &rest is not
// supported within a message's own argument list: unlike a local call,
// a SendOp's ArgBytes is a single fixed field covering every message,
// so a runtime-dependent count within one message has nowhere to be
// reconciled against the others.
func (c *Compiler) compileMessages(msgs []parsetree.Message) uint16 {
	width := c.argCountWidth()
	var total uint16
	for _, m := range msgs {
		if restOf(m.Args) != nil {
			c.Diag.Errorf(c.File, 0, "&rest forwarding is not supported in a message's argument list")
		}

		c.compileSelector(m.Selector)
		c.emit(anode.NewPlain(opcode.OpPush))

		argCount := anode.NewMutableImm(opcode.OpConst, width, 0)
		c.emit(argCount)
		n := 0
		for _, a := range m.Args {
			if _, ok := a.(*parsetree.Rest); ok {
				continue
			}
			c.compileExpr(a)
			c.emit(anode.NewPlain(opcode.OpPush))
			n++
		}
		argCount.SetValue(uint16(2 * n))

		total += 2 + uint16(width) + uint16(2*n)

		if n > 1 {
			c.checkPropertySendArgCount(m.Selector, n)
		}
	}
	return total
}

// checkPropertySendArgCount diagnoses sending more than one argument
// to a selector known to resolve to a property rather than a method.
// It can only check against the current object's own
// selector table — a send to an arbitrary receiver expression's class
// isn't resolvable here — so this catches self-sends and method-local
// sends against a statically-known property, not the general case.
func (c *Compiler) checkPropertySendArgCount(selector parsetree.Node, n int) {
	lit, ok := selector.(*parsetree.SelectorLiteral)
	if !ok || c.CurObject == nil {
		return
	}
	if sel := c.CurObject.FindSelector(lit.Name); sel != nil && !sel.IsMethod {
		c.Diag.Errorf(c.File, lit.Line(), "selector %q is a property; sending it %d arguments is invalid", lit.Name, n)
	}
}
