// Package symtab implements the scoped symbol table, and the
// selector/object/class and variable-list tables it owns entries for.
// Symbol tables are pushed on entering a method or procedure and
// popped on exit; an explicit Stack tracks the active scope, since a
// popped table may need to stay alive for a listing pass after
// compilation of its owning procedure ends. Go's GC does the "free if
// not retained" half for free.
package symtab

import (
	"sort"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/forwardref"
)

// Kind tags what a Symbol names.
type Kind int

const (
	KindKeyword Kind = iota
	KindDefine
	KindGlobalVar
	KindLocalVar
	KindTemp
	KindParam
	KindProperty
	KindSelector
	KindProcedure
	KindExtern
	KindClass
	KindObject
	KindStringLiteral
	KindNumber
)

// Symbol is an entry in a scoped symbol table: a name, a Kind, a
// numeric Value (a define's value, a variable's slot index, a
// selector's number — whatever Kind calls for), optional ownership of
// an Object this symbol names, and a ForwardRef code references the
// symbol through before its definition has emitted an ANode.
type Symbol struct {
	Name   string
	Kind   Kind
	Value  int
	Object *Object
	Ref    forwardref.Ref[anode.Node]
}

// PropertyKind distinguishes the five property-selector shapes.
type PropertyKind int

const (
	PropTagged PropertyKind = iota
	PropText
	PropOffset
	PropDict
	PropMethDict
)

// MethodKind distinguishes a selector backed by a tagged (dispatch
// table) method from one resolved directly to its code block.
type MethodKind int

const (
	MethodTagged MethodKind = iota
	MethodLocal
)

// LiteralValue is either a plain integer or a reference to a Text
// node laid out in the heap's text region.
type LiteralValue struct {
	IsText bool
	Int    int32
	Text   forwardref.Ref[anode.Node]
}

// IntLiteral constructs an integer LiteralValue.
func IntLiteral(v int32) LiteralValue { return LiteralValue{Int: v} }

// Selector is a named slot on an Object or Class: either a property
// (one of the PropertyKind shapes, carrying an initial LiteralValue)
// or a method (one of the MethodKind shapes, carrying a ForwardRef to
// its compiled code block).
type Selector struct {
	Name     string
	Number   uint16
	IsMethod bool

	PropKind     PropertyKind
	InitialValue LiteralValue

	MethKind MethodKind
	Code     forwardref.Ref[anode.Node]
}

// NewPropertySelector creates a property selector with the given
// initial value.
func NewPropertySelector(name string, number uint16, kind PropertyKind, initial LiteralValue) *Selector {
	return &Selector{Name: name, Number: number, PropKind: kind, InitialValue: initial}
}

// NewMethodSelector creates a method selector. Its Code ForwardRef is
// resolved once the method's code block has been compiled and laid
// out.
func NewMethodSelector(name string, number uint16, kind MethodKind) *Selector {
	return &Selector{Name: name, Number: number, IsMethod: true, MethKind: kind}
}

// Object is an ordered list of Selectors. An instance is simply an
// Object with IsClass false; a class additionally carries a species
// number, a superclass number, and forest links to its siblings and
// children, used for listings and classdef writing.
//
// An instance inherits its superclass's selectors by duplicating them
// at definition time, then overriding; Clone implements that half of
// the contract (the overriding is the caller's job, via Selectors).
type Object struct {
	Name       string
	Selectors  []*Selector
	IsClass    bool
	Species    uint16
	Superclass uint16

	Parent      *Object
	FirstChild  *Object
	NextSibling *Object
}

// NewObject creates an empty object or class named name.
func NewObject(name string, isClass bool) *Object {
	return &Object{Name: name, IsClass: isClass}
}

// AddSelector appends sel to the object's ordered selector list.
func (o *Object) AddSelector(sel *Selector) { o.Selectors = append(o.Selectors, sel) }

// FindSelector returns the selector named name, or nil if none exists.
func (o *Object) FindSelector(name string) *Selector {
	for _, s := range o.Selectors {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AddChild links child into o's child forest, as the last of o's
// existing children, and sets child.Parent.
func (o *Object) AddChild(child *Object) {
	child.Parent = o
	if o.FirstChild == nil {
		o.FirstChild = child
		return
	}
	last := o.FirstChild
	for last.NextSibling != nil {
		last = last.NextSibling
	}
	last.NextSibling = child
}

// Clone duplicates o's selectors, in order, into a new unparented
// Object named name: an instance inherits selectors by duplicating
// from its superclass at definition time. The
// caller is responsible for the subsequent override pass and for
// linking the result into the class forest.
func (o *Object) Clone(name string, isClass bool) *Object {
	clone := NewObject(name, isClass)
	clone.Superclass = o.Species
	for _, sel := range o.Selectors {
		dup := *sel
		clone.AddSelector(&dup)
	}
	return clone
}

// VarList is an ordered sequence of slots, each holding an optional
// LiteralValue, defining a global or local variable block. A nil
// slot has no explicit initial value and defaults to 0.
type VarList struct {
	Slots []*LiteralValue
}

// Append adds a new slot holding val (nil for "no initial value") and
// returns its index.
func (v *VarList) Append(val *LiteralValue) int {
	idx := len(v.Slots)
	v.Slots = append(v.Slots, val)
	return idx
}

// Len reports the number of slots in the list.
func (v *VarList) Len() int { return len(v.Slots) }

// Table is one scope's flat name-to-Symbol store, chained to its
// enclosing scope.
type Table struct {
	parent *Table
	store  map[string]*Symbol
}

// NewTable creates an empty, parentless scope.
func NewTable() *Table {
	return &Table{store: make(map[string]*Symbol)}
}

// Enter creates a new scope nested inside t.
func (t *Table) Enter() *Table {
	return &Table{parent: t, store: make(map[string]*Symbol)}
}

// Define binds name to a new Symbol of the given kind in this scope,
// shadowing any same-named symbol in an enclosing scope.
func (t *Table) Define(name string, kind Kind) *Symbol {
	sym := &Symbol{Name: name, Kind: kind}
	t.store[name] = sym
	return sym
}

// Symbols returns every symbol defined directly in this scope, sorted
// by name for deterministic iteration (map order would leak into
// vocabulary files otherwise).
func (t *Table) Symbols() []*Symbol {
	names := make([]string, 0, len(t.store))
	for name := range t.store {
		names = append(names, name)
	}
	sort.Strings(names)
	syms := make([]*Symbol, 0, len(names))
	for _, name := range names {
		syms = append(syms, t.store[name])
	}
	return syms
}

// Resolve looks up name in this scope, then recursively in enclosing
// scopes.
func (t *Table) Resolve(name string) (*Symbol, bool) {
	if sym, ok := t.store[name]; ok {
		return sym, true
	}
	if t.parent != nil {
		return t.parent.Resolve(name)
	}
	return nil, false
}

// Stack tracks the currently active scope and implements the
// push-on-enter, pop-on-exit lifecycle, retaining
// every popped Table when a listing is being produced so symbolic
// names stay resolvable for it, and simply dropping the reference
// (letting the garbage collector reclaim it) otherwise.
type Stack struct {
	current  *Table
	retain   bool
	retained []*Table
}

// NewStack creates a Stack with one root (global) scope. retainPopped
// should be true whenever a listing (`-l`) is being produced.
func NewStack(retainPopped bool) *Stack {
	return &Stack{current: NewTable(), retain: retainPopped}
}

// Global returns the outermost scope.
func (s *Stack) Global() *Table {
	t := s.current
	for t.parent != nil {
		t = t.parent
	}
	return t
}

// Push enters a new nested scope, e.g. on entering a procedure or
// method body.
func (s *Stack) Push() { s.current = s.current.Enter() }

// Pop exits the current scope, returning to its parent. If the Stack
// was built with retainPopped, the exited scope is kept reachable via
// Retained.
func (s *Stack) Pop() {
	popped := s.current
	s.current = popped.parent
	if s.retain {
		s.retained = append(s.retained, popped)
	}
}

// Retained returns every popped scope still being kept alive for
// listing purposes, in pop order.
func (s *Stack) Retained() []*Table { return s.retained }

// Define binds name in the current (innermost) scope.
func (s *Stack) Define(name string, kind Kind) *Symbol { return s.current.Define(name, kind) }

// Resolve looks up name starting from the current scope.
func (s *Stack) Resolve(name string) (*Symbol, bool) { return s.current.Resolve(name) }
