// Package frontend decodes a compilation unit described as JSON into
// the parsetree.Node trees and symtab declarations internal/codegen's
// Program consumes. The surface-syntax tokenizer and parser are
// external collaborators providing an already-parsed program as a
// named interface; this package stands in for that collaborator's
// output format so cmd/sciasm has a concrete, buildable-without-a-
// lexer way to drive the core end to end. It owns
// no grammar of the source language itself — only the already-parsed
// tree shape internal/parsetree already defines.
package frontend

import (
	"encoding/json"
	"fmt"

	"github.com/dr8co/sciasm/internal/parsetree"
	"github.com/dr8co/sciasm/internal/symtab"
)

// UnitFile is the top-level shape of one compilation unit's JSON
// description: the globals and selectors every reference in the unit
// resolves against, the class/object forest, and the procedures that
// make up the unit's code.
type UnitFile struct {
	// Script is the unit's script number N, naming its N.hep / N.scr
	// output files.
	Script     uint16       `json:"script"`
	Globals    []VarDecl    `json:"globals"`
	Selectors  []SelDecl    `json:"selectors"`
	Classes    []ObjectDecl `json:"classes"`
	Objects    []ObjectDecl `json:"objects"`
	Procedures []ProcDecl   `json:"procedures"`
}

// VarDecl describes one global/local variable slot: either an integer
// Value or, when Text is non-empty, a string-literal initial value
// (symtab.LiteralValue's two shapes).
type VarDecl struct {
	Name  string `json:"name"`
	Value int32  `json:"value"`
	Text  string `json:"text"`
	IsStr bool   `json:"isText"`
}

// SelDecl declares a named selector number, global to the unit.
type SelDecl struct {
	Name   string `json:"name"`
	Number uint16 `json:"number"`
}

// ProcDecl describes one top-level procedure or method: its name, an
// optional dispatch-table Public index (-1/omitted for private), the
// number of declared temp slots (baseTemp), and its body as a list of
// raw JSON expression nodes.
type ProcDecl struct {
	Name   string            `json:"name"`
	Public *int              `json:"public"`
	Temps  int               `json:"temps"`
	Body   []json.RawMessage `json:"body"`
}

// SelectorDecl is one selector (property or method) of a class or
// object, in declaration order.
type SelectorDecl struct {
	Name string `json:"name"`
	// Number is the selector's global number; when zero and Name
	// resolves through the unit's Selectors table, that number is used
	// instead (set ExplicitNumber to force 0 itself).
	Number         uint16 `json:"number"`
	ExplicitNumber bool   `json:"explicitNumber"`

	IsMethod bool `json:"method"`
	// MethKind: "tagged" or "local" (default).
	MethKind string            `json:"methodKind"`
	Proc     *ProcDecl         `json:"proc"`
	PropKind string            `json:"propKind"` // "tagged" (default), "text", "offset", "propdict", "methdict"
	Value    int32             `json:"value"`
	Text     string            `json:"text"`
}

// ObjectDecl describes one class or instance.
type ObjectDecl struct {
	Name       string         `json:"name"`
	Species    uint16         `json:"species"`
	Superclass string         `json:"superclass"`
	Selectors  []SelectorDecl `json:"selectors"`
}

// Decode parses raw JSON bytes into a UnitFile.
func Decode(data []byte) (*UnitFile, error) {
	var u UnitFile
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("frontend: decode unit: %w", err)
	}
	return &u, nil
}

// rawNode is the generic shape every expression node JSON object
// shares: a discriminant "op" field plus op-specific fields decoded on
// demand by DecodeExpr.
type rawNode struct {
	Op   string `json:"op"`
	Line int    `json:"line"`
	// literals
	Int  int32  `json:"int"`
	Text string `json:"text"`
	Name string `json:"name"`
	// generic expression value, used by "return" (optional) and
	// "assign" (required) — kept distinct from Int/Text, which are
	// reserved for the "num"/"str" literal ops themselves.
	Value *json.RawMessage `json:"value"`

	// variable access
	Class string           `json:"class"` // "global", "local", "temp", "param"
	Index *json.RawMessage `json:"index"`

	// calls / sends
	Callee     string            `json:"callee"`
	Args       []json.RawMessage `json:"args"`
	Kind       string            `json:"kind"` // extern call kind
	Module     uint16            `json:"module"`
	Entry      uint16            `json:"entry"`
	Receiver   *json.RawMessage  `json:"receiver"`
	Superclass string            `json:"superclass"`
	Messages   []rawMessage      `json:"messages"`
	From       int               `json:"from"`

	// operators
	Operator string            `json:"operator"`
	Operand  *json.RawMessage  `json:"operand"`
	Left     *json.RawMessage  `json:"left"`
	Right    *json.RawMessage  `json:"right"`
	Operands []json.RawMessage `json:"operands"`

	// assignment / inc-dec
	Target    *json.RawMessage `json:"target"`
	Increment bool             `json:"increment"`

	// control flow
	Clauses  []rawClause       `json:"clauses"`
	Else     []json.RawMessage `json:"else"`
	Scrutinee *json.RawMessage `json:"scrutinee"`
	SwitchTo bool              `json:"switchto"`
	Cases    []rawCase         `json:"cases"`
	LoopKind string            `json:"loopKind"` // "while", "repeat", "for"
	Init     *json.RawMessage  `json:"init"`
	Test     *json.RawMessage  `json:"test"`
	Update   *json.RawMessage  `json:"update"`
	Body     []json.RawMessage `json:"body"`
	Depth    int               `json:"depth"`
	Cond     *json.RawMessage  `json:"cond"`
}

type rawMessage struct {
	Selector json.RawMessage   `json:"selector"`
	Args     []json.RawMessage `json:"args"`
}

type rawClause struct {
	Test json.RawMessage   `json:"test"`
	Body []json.RawMessage `json:"body"`
}

type rawCase struct {
	Value *json.RawMessage  `json:"value"`
	Body  []json.RawMessage `json:"body"`
}

func varClass(s string) parsetree.VarClass {
	switch s {
	case "local":
		return parsetree.ClassLocal
	case "temp":
		return parsetree.ClassTemp
	case "param":
		return parsetree.ClassParam
	default:
		return parsetree.ClassGlobal
	}
}

// DecodeExpr decodes one raw JSON expression node into a parsetree.Node.
func DecodeExpr(raw json.RawMessage) (parsetree.Node, error) {
	var n rawNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("frontend: decode node: %w", err)
	}
	return decodeRaw(&n)
}

func decodeList(raws []json.RawMessage) ([]parsetree.Node, error) {
	out := make([]parsetree.Node, 0, len(raws))
	for _, r := range raws {
		n, err := DecodeExpr(r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeOpt(raw *json.RawMessage) (parsetree.Node, error) {
	if raw == nil {
		return nil, nil
	}
	return DecodeExpr(*raw)
}

func decodeVarRef(raw *json.RawMessage) (*parsetree.VarRef, error) {
	n, err := decodeOpt(raw)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("frontend: expected a variable/property reference, got nothing")
	}
	v, ok := n.(*parsetree.VarRef)
	if !ok {
		return nil, fmt.Errorf("frontend: expected a variable/property reference, got %T", n)
	}
	return v, nil
}

func decodeRaw(n *rawNode) (parsetree.Node, error) {
	switch n.Op {
	case "num":
		return parsetree.NewNumberLiteral(n.Line, n.Int), nil
	case "str":
		return parsetree.NewStringLiteral(n.Line, n.Text), nil
	case "sel":
		return parsetree.NewSelectorLiteral(n.Line, n.Name), nil
	case "var":
		idx, err := decodeOpt(n.Index)
		if err != nil {
			return nil, err
		}
		v := parsetree.NewVarRef(n.Line, n.Name, varClass(n.Class))
		if idx != nil {
			v.Indexed(idx)
		}
		return v, nil
	case "prop":
		idx, err := decodeOpt(n.Index)
		if err != nil {
			return nil, err
		}
		v := parsetree.NewPropRef(n.Line, n.Name)
		if idx != nil {
			v.Indexed(idx)
		}
		return v, nil
	case "addr":
		target, err := decodeVarRef(n.Target)
		if err != nil {
			return nil, err
		}
		return parsetree.NewAddressOf(n.Line, target), nil
	case "class":
		return parsetree.NewClassRef(n.Line, n.Name), nil
	case "obj":
		return parsetree.NewObjectRef(n.Line, n.Name), nil
	case "self":
		return parsetree.NewSelfRef(n.Line), nil
	case "call":
		args, err := decodeList(n.Args)
		if err != nil {
			return nil, err
		}
		return parsetree.NewCall(n.Line, n.Callee, args), nil
	case "calle":
		args, err := decodeList(n.Args)
		if err != nil {
			return nil, err
		}
		kind := parsetree.ExternKernel
		switch n.Kind {
		case "modnum":
			kind = parsetree.ExternModuleNumber
		case "othermod":
			kind = parsetree.ExternOtherModule
		}
		return parsetree.NewExternCall(n.Line, kind, n.Module, n.Entry, args), nil
	case "send", "selfsend", "supersend":
		msgs, err := decodeMessages(n.Messages)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "selfsend":
			return parsetree.NewSelfSend(n.Line, msgs), nil
		case "supersend":
			return parsetree.NewSuperSend(n.Line, n.Superclass, msgs), nil
		default:
			recv, err := decodeOpt(n.Receiver)
			if err != nil {
				return nil, err
			}
			return parsetree.NewSend(n.Line, recv, msgs), nil
		}
	case "return":
		val, err := decodeOpt(n.Value)
		if err != nil {
			return nil, err
		}
		return parsetree.NewReturn(n.Line, val), nil
	case "rest":
		return parsetree.NewRest(n.Line, n.From), nil
	case "unary":
		operand, err := decodeOpt(n.Operand)
		if err != nil {
			return nil, err
		}
		return parsetree.NewUnaryOp(n.Line, n.Operator, operand), nil
	case "binary":
		left, err := decodeOpt(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeOpt(n.Right)
		if err != nil {
			return nil, err
		}
		return parsetree.NewBinaryOp(n.Line, n.Operator, left, right), nil
	case "nary":
		operands, err := decodeList(n.Operands)
		if err != nil {
			return nil, err
		}
		return parsetree.NewNaryOp(n.Line, n.Operator, operands), nil
	case "cmp":
		operands, err := decodeList(n.Operands)
		if err != nil {
			return nil, err
		}
		return parsetree.NewComparison(n.Line, n.Operator, operands), nil
	case "logical":
		operands, err := decodeList(n.Operands)
		if err != nil {
			return nil, err
		}
		return parsetree.NewLogicalOp(n.Line, n.Operator, operands), nil
	case "assign":
		target, err := decodeVarRef(n.Target)
		if err != nil {
			return nil, err
		}
		val, err := decodeOpt(n.Value)
		if err != nil {
			return nil, err
		}
		if n.Operator == "" {
			return parsetree.NewAssign(n.Line, target, val), nil
		}
		return parsetree.NewCompoundAssign(n.Line, target, n.Operator, val), nil
	case "incdec":
		target, err := decodeVarRef(n.Target)
		if err != nil {
			return nil, err
		}
		return parsetree.NewIncDec(n.Line, target, n.Increment), nil
	case "if":
		clauses := make([]parsetree.IfClause, 0, len(n.Clauses))
		for _, c := range n.Clauses {
			test, err := DecodeExpr(c.Test)
			if err != nil {
				return nil, err
			}
			body, err := decodeList(c.Body)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, parsetree.IfClause{Test: test, Body: body})
		}
		els, err := decodeList(n.Else)
		if err != nil {
			return nil, err
		}
		return parsetree.NewIf(n.Line, clauses, els), nil
	case "switch":
		scrutinee, err := decodeOpt(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		cases := make([]parsetree.SwitchCase, 0, len(n.Cases))
		for _, c := range n.Cases {
			val, err := decodeOpt(c.Value)
			if err != nil {
				return nil, err
			}
			body, err := decodeList(c.Body)
			if err != nil {
				return nil, err
			}
			cases = append(cases, parsetree.SwitchCase{Value: val, Body: body})
		}
		if n.SwitchTo {
			return parsetree.NewSwitchTo(n.Line, scrutinee, cases), nil
		}
		return parsetree.NewSwitch(n.Line, scrutinee, cases), nil
	case "loop":
		body, err := decodeList(n.Body)
		if err != nil {
			return nil, err
		}
		switch n.LoopKind {
		case "repeat":
			return parsetree.NewRepeat(n.Line, body), nil
		case "for":
			init, err := decodeOpt(n.Init)
			if err != nil {
				return nil, err
			}
			test, err := decodeOpt(n.Test)
			if err != nil {
				return nil, err
			}
			update, err := decodeOpt(n.Update)
			if err != nil {
				return nil, err
			}
			return parsetree.NewFor(n.Line, init, test, update, body), nil
		default:
			test, err := decodeOpt(n.Test)
			if err != nil {
				return nil, err
			}
			return parsetree.NewWhile(n.Line, test, body), nil
		}
	case "break", "continue":
		cond, err := decodeOpt(n.Cond)
		if err != nil {
			return nil, err
		}
		if n.Op == "break" {
			if cond != nil {
				return parsetree.NewBreakIf(n.Line, n.Depth, cond), nil
			}
			return parsetree.NewBreak(n.Line, n.Depth), nil
		}
		if cond != nil {
			return parsetree.NewContinueIf(n.Line, n.Depth, cond), nil
		}
		return parsetree.NewContinue(n.Line, n.Depth), nil
	default:
		return nil, fmt.Errorf("frontend: unknown expression op %q", n.Op)
	}
}

func decodeMessages(raws []rawMessage) ([]parsetree.Message, error) {
	msgs := make([]parsetree.Message, 0, len(raws))
	for _, m := range raws {
		sel, err := DecodeExpr(m.Selector)
		if err != nil {
			return nil, err
		}
		args, err := decodeList(m.Args)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, parsetree.Message{Selector: sel, Args: args})
	}
	return msgs, nil
}

// literalValue turns an (isText, value) pair into a
// symtab.LiteralValue. For a text value it leaves the LiteralValue's
// Text ForwardRef unresolved; the caller interns the text and resolves
// it.
func literalValue(isText bool, value int32) symtab.LiteralValue {
	if isText {
		return symtab.LiteralValue{IsText: true}
	}
	return symtab.IntLiteral(value)
}
