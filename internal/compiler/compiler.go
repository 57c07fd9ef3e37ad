// Package compiler implements the expression compiler: the component
// that walks an already-parsed parsetree.Node body and emits the
// anode.Node graph a procedure or method's compiled code block is
// made of.
//
// Structured as one big type switch over the AST, with
// per-code-block bookkeeping pushed and popped by compileCodeBlock
// around each Composite, and an "emit a placeholder operand,
// backpatch later" idiom — except here that idiom is the
// ForwardRef/ MutableImm mechanism internal/anode already generalizes,
// rather than a raw byte-offset poke into a []byte instructions slice.
package compiler

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/diag"
	"github.com/dr8co/sciasm/internal/forwardref"
	"github.com/dr8co/sciasm/internal/opcode"
	"github.com/dr8co/sciasm/internal/parsetree"
	"github.com/dr8co/sciasm/internal/peephole"
	"github.com/dr8co/sciasm/internal/symtab"
)

// Dialect selects the target instruction-set generation, which
// changes exactly two things the expression compiler cares about: the
// width of a backfilled call/send argument-count word, and whether
// debug line-number/file-name opcodes are available at all (SCI_1_1
// has no such opcodes).
type Dialect int

const (
	SCI11 Dialect = iota
	SCI2
)

func (d Dialect) argCountWidth() int {
	if d == SCI11 {
		return 1
	}
	return 2
}

// loopFrame records the three labels break/continue can target within
// one enclosing loop: end (break), and either start or a dedicated
// continue label (for's post-body update step has its own label since
// `continue` there must still run the update, unlike while/repeat).
type loopFrame struct {
	start *anode.Label
	end   *anode.Label
	cont  *anode.Label
}

// Compiler holds everything the expression compiler needs threaded
// through one compilation unit: the target dialect, the diagnostic
// collector every undefined-reference/invalid-send-arity check reports
// through, the symbol table stack procedures/methods push and pop
// around their own scope, the currently-compiling object (for property
// resolution), and the shared string pool heap assembly will lay out.
//
// CurObject, File, and the code-block-local fields (block, labelNum,
// lastLine, nextTemp, loops) are saved and restored by
// compileCodeBlock around each procedure/method, so one Compiler value
// compiles an entire script's procedures and methods in sequence.
type Compiler struct {
	Dialect Dialect
	Debug   bool
	Diag    *diag.Collector
	Syms    *symtab.Stack
	Strings *StringPool

	// DisablePeephole skips installing the peephole rewriter on every
	// compiled code block (the `-z` flag).
	DisablePeephole bool

	CurObject *symtab.Object
	File      string

	block    *anode.Composite
	labelNum int
	lastLine int
	nextTemp int
	loops    []loopFrame
}

// New creates a Compiler targeting dialect, reporting diagnostics to d,
// resolving names through syms, and interning string literals into
// strings.
func New(dialect Dialect, debug bool, d *diag.Collector, syms *symtab.Stack, strings *StringPool) *Compiler {
	return &Compiler{Dialect: dialect, Debug: debug, Diag: d, Syms: syms, Strings: strings}
}

func (c *Compiler) argCountWidth() int { return c.Dialect.argCountWidth() }

// chainRef registers a callback on src that resolves dst to the same
// value once src itself resolves — the plumbing every reference to a
// not-yet-compiled procedure, object, or class goes through, since each
// anode reference node (Call, AddrRef, ...) owns its own Target
// ForwardRef distinct from the symtab.Symbol.Ref it ultimately tracks.
func chainRef(dst *forwardref.Ref[anode.Node], src *forwardref.Ref[anode.Node]) {
	src.Register(func(n anode.Node) {
		_ = dst.Resolve(n)
	})
}

// emit appends n to the code block currently being compiled.
func (c *Compiler) emit(n anode.Node) { c.block.Append(n) }

// newLabel allocates the next label number within the current code
// block, without binding it to a position.
func (c *Compiler) newLabel() *anode.Label {
	c.labelNum++
	return anode.NewLabel(c.labelNum)
}

// bindLabel marks l's position as the next emitted node.
func (c *Compiler) bindLabel(l *anode.Label) { c.emit(l) }

// branchTo emits a branch to target. Unlike a Call or AddrRef's
// ForwardRef, a branch's Label already exists as a value by the time
// any branch to it is compiled (newLabel allocates it up front, even
// though it isn't bound to a position until later) so Target resolves
// immediately rather than through a registered callback.
func (c *Compiler) branchTo(op opcode.Op, target *anode.Label) *anode.Branch {
	b := anode.NewBranch(op)
	_ = b.Target.Resolve(anode.Node(target))
	c.emit(b)
	return b
}

func (c *Compiler) pushLoop(start, end, cont *anode.Label) {
	c.loops = append(c.loops, loopFrame{start: start, end: end, cont: cont})
}

func (c *Compiler) popLoop() { c.loops = c.loops[:len(c.loops)-1] }

func (c *Compiler) loopAt(depth int) (loopFrame, bool) {
	idx := len(c.loops) - 1 - depth
	if idx < 0 || idx >= len(c.loops) {
		return loopFrame{}, false
	}
	return c.loops[idx], true
}

// allocTemp hands out the next free temp slot for compiler-introduced
// machinery (currently only &rest forwarding's loop counter) that
// needs a physical variable slot of its own, beyond whatever temps the
// source procedure/method itself declared. baseTemp, passed in by the
// CompileProcedure/CompileMethod caller, is the count of those
// declared temps, so synthetic slots never alias a real one.
func (c *Compiler) allocTemp() uint16 {
	slot := c.nextTemp
	c.nextTemp++
	return uint16(slot)
}

// CompileProcedure compiles a top-level procedure body into a
// KindCodeBlock composite named name. baseTemp is the number of
// user-declared temp slots already in scope (synthetic temps the
// compiler itself needs are allocated above that).
func (c *Compiler) CompileProcedure(name, file string, baseTemp int, body []parsetree.Node) *anode.Composite {
	return c.compileCodeBlock(name, file, baseTemp, nil, body)
}

// CompileMethod compiles a method body the same way, with obj set as
// the current object for the duration — the receiver property
// resolution needs.
func (c *Compiler) CompileMethod(obj *symtab.Object, name, file string, baseTemp int, body []parsetree.Node) *anode.Composite {
	return c.compileCodeBlock(name, file, baseTemp, obj, body)
}

func (c *Compiler) compileCodeBlock(name, file string, baseTemp int, obj *symtab.Object, body []parsetree.Node) *anode.Composite {
	prevBlock, prevLabelNum, prevLastLine, prevTemp, prevObj, prevLoops, prevFile :=
		c.block, c.labelNum, c.lastLine, c.nextTemp, c.CurObject, c.loops, c.File

	block := anode.NewComposite(anode.KindCodeBlock, name)
	if !c.DisablePeephole {
		block.SetOptimizer(peephole.Rewrite)
	}

	c.block = block
	c.labelNum = 0
	c.lastLine = 0
	c.nextTemp = baseTemp
	c.CurObject = obj
	c.loops = nil
	c.File = file

	if c.Debug && c.Dialect == SCI2 {
		c.emit(anode.NewFileName(file))
	}
	c.compileBody(body)
	c.emit(anode.NewPlain(opcode.OpRet))

	c.block, c.labelNum, c.lastLine, c.nextTemp, c.CurObject, c.loops, c.File =
		prevBlock, prevLabelNum, prevLastLine, prevTemp, prevObj, prevLoops, prevFile
	return block
}

func (c *Compiler) compileBody(stmts []parsetree.Node) {
	for _, s := range stmts {
		c.compileStmt(s)
	}
}

// compileStmt emits a debug line-number opcode ahead of n when this
// statement starts a later source line than the last one annotated,
// then compiles n itself. There is
// no "discard the expression result" step between statements: every
// accumulator-producing node simply gets overwritten by the next
// statement, the way an accumulator machine needs no explicit pop for
// an unused expression-statement value.
func (c *Compiler) compileStmt(n parsetree.Node) {
	if c.Debug && c.Dialect == SCI2 && n.Line() > c.lastLine {
		c.lastLine = n.Line()
		c.emit(anode.NewLineNo(uint16(n.Line())))
	}
	c.compileExpr(n)
}

func (c *Compiler) accessClass(vc parsetree.VarClass) opcode.AccessClass {
	switch vc {
	case parsetree.ClassGlobal:
		return opcode.ClassGlobal
	case parsetree.ClassLocal:
		return opcode.ClassLocal
	case parsetree.ClassTemp:
		return opcode.ClassTemp
	default:
		return opcode.ClassParam
	}
}

func (c *Compiler) varAddress(v *parsetree.VarRef) uint16 {
	sym, ok := c.Syms.Resolve(v.Name)
	if !ok {
		c.Diag.Errorf(c.File, v.Line(), "undefined variable %q", v.Name)
		return 0
	}
	return uint16(sym.Value)
}

func (c *Compiler) propertySelector(name string, line int) uint16 {
	if c.CurObject == nil {
		c.Diag.Errorf(c.File, line, "property %q referenced outside any object", name)
		return 0
	}
	sel := c.CurObject.FindSelector(name)
	if sel == nil {
		c.Diag.Errorf(c.File, line, "undefined property %q on %s", name, c.CurObject.Name)
		return 0
	}
	return sel.Number
}

// varAccessNode builds the VarAccess node for a variable or property
// reference, with the indexed bit set when v is indexed. The caller
// compiles the index expression into the accumulator immediately
// before emitting this node; the opcode reads it from there.
func (c *Compiler) varAccessNode(kind opcode.AccessKind, dst opcode.AccessDst, v *parsetree.VarRef) *anode.VarAccess {
	if v.IsProperty {
		sel := c.propertySelector(v.Name, v.Line())
		return anode.NewVarAccess(kind, dst, opcode.PropTag, v.Index != nil, sel)
	}
	return anode.NewVarAccess(kind, dst, c.accessClass(v.Class), v.Index != nil, c.varAddress(v))
}

// resolveSelectorNumber looks up a named selector's number in the
// global scope — selectors, like classes, are resolved through the
// same symtab.Stack every other name is, per symtab.KindSelector.
func (c *Compiler) resolveSelectorNumber(name string) (uint16, bool) {
	sym, ok := c.Syms.Global().Resolve(name)
	if !ok || sym.Kind != symtab.KindSelector {
		return 0, false
	}
	return uint16(sym.Value), true
}

var binaryOps = map[string]opcode.Op{
	"+": opcode.OpAdd, "-": opcode.OpSub, "*": opcode.OpMul, "/": opcode.OpDiv,
	"mod": opcode.OpMod, "%": opcode.OpMod,
	"shl": opcode.OpShl, "<<": opcode.OpShl, "shr": opcode.OpShr, ">>": opcode.OpShr,
	"&": opcode.OpAnd, "|": opcode.OpOr, "^": opcode.OpXor,
}

var unaryOps = map[string]opcode.Op{
	"neg": opcode.OpNeg, "-": opcode.OpNeg, "not": opcode.OpNot, "~": opcode.OpNot,
}

var comparisonOps = map[string]opcode.Op{
	"<": opcode.OpLt, "<=": opcode.OpLe, "==": opcode.OpEq, "!=": opcode.OpNe,
	">": opcode.OpGt, ">=": opcode.OpGe,
	"u<": opcode.OpULt, "u<=": opcode.OpULe, "u>": opcode.OpUGt, "u>=": opcode.OpUGe,
}

func (c *Compiler) binaryOpcode(op string) opcode.Op {
	if o, ok := binaryOps[op]; ok {
		return o
	}
	c.Diag.Errorf(c.File, 0, "unknown binary operator %q", op)
	return opcode.OpAdd
}

func (c *Compiler) unaryOpcode(op string) opcode.Op {
	if o, ok := unaryOps[op]; ok {
		return o
	}
	c.Diag.Errorf(c.File, 0, "unknown unary operator %q", op)
	return opcode.OpNeg
}

func (c *Compiler) comparisonOpcode(op string) opcode.Op {
	if o, ok := comparisonOps[op]; ok {
		return o
	}
	c.Diag.Errorf(c.File, 0, "unknown comparison operator %q", op)
	return opcode.OpEq
}

// emitBinaryConst computes acc = acc OP v using the general
// push-left/load-right/apply convention every binary compile in this
// package follows (compileBinaryOp, compileNaryOp): push the current
// accumulator, load the right-hand operand, emit the opcode, which per
// this VM's convention pops the pushed left operand and combines it
// with the accumulator.
func (c *Compiler) emitBinaryConst(op opcode.Op, v int32) {
	c.emit(anode.NewPlain(opcode.OpPush))
	c.emit(anode.NewImm(opcode.OpLdImm, v < 0, v))
	c.emit(anode.NewPlain(op))
}

// emitBinaryTemp is emitBinaryConst's counterpart when the right-hand
// operand is a compiler-allocated temp slot rather than a literal.
func (c *Compiler) emitBinaryTemp(op opcode.Op, slot uint16) {
	c.emit(anode.NewPlain(opcode.OpPush))
	c.emitLoadTemp(slot)
	c.emit(anode.NewPlain(op))
}

func (c *Compiler) emitLoadTemp(slot uint16) {
	c.emit(anode.NewVarAccess(opcode.AccessLoad, opcode.DstAcc, opcode.ClassTemp, false, slot))
}

// emitStoreTemp stores the current accumulator into temp slot.
// Stores always consume the top of the stack, so every store,
// including this synthetic one, pushes the value first rather than
// special-casing an acc-source form, preserving the peephole
// optimizer's store/load asymmetry.
func (c *Compiler) emitStoreTemp(slot uint16) {
	c.emit(anode.NewPlain(opcode.OpPush))
	c.emit(anode.NewVarAccess(opcode.AccessStore, opcode.DstStack, opcode.ClassTemp, false, slot))
}
