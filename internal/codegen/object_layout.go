package codegen

import (
	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/forwardref"
	"github.com/dr8co/sciasm/internal/symtab"
)

// chainRef resolves dst the moment src resolves — the cross-package
// equivalent of the compiler package's own chainRef helper, needed
// here because a method's or text property's target often isn't known
// until its owning procedure or string pool entry is compiled after
// the object itself is laid out.
func chainRef(dst *forwardref.Ref[anode.Node], src *forwardref.Ref[anode.Node]) {
	src.Register(func(v anode.Node) { _ = dst.Resolve(v) })
}

// ObjectBuilder lays out one object or class instance's heap property
// list and hunk object-dictionary entry: a heap object marker followed
// by one property-table word per property selector, and a hunk object
// marker followed by a selector-number dictionary (populated only for
// classes), a method-count word, and a selector/method-ref
// dictionary.
//
// A local method also gets a heap property-table entry alongside its
// hunk method-dictionary entry, so a property-style lookup of the
// selector lands on something meaningful in either stream.
type ObjectBuilder struct {
	u          *Unit
	name       string
	isInstance bool

	marker *anode.ObjectMarker
	props  *anode.Composite

	dictMarker   *anode.ObjectMarker
	propDict     *anode.Composite
	methDict     *anode.Composite
	methDictSize *anode.ComputedWord
	numMethods   int
}

// NewObjectBuilder starts laying out a new object or class named
// name. An instance's own property dictionary stays empty, since
// nothing but a class's property table is ever looked up by selector
// number at runtime.
func NewObjectBuilder(u *Unit, name string, isInstance bool) *ObjectBuilder {
	ob := &ObjectBuilder{u: u, name: name, isInstance: isInstance}

	ob.marker = anode.NewObjectMarker(name)
	ob.props = anode.NewComposite(anode.KindObject, name+" properties")
	u.ObjProps.Append(ob.marker)
	u.ObjProps.Append(ob.props)

	ob.dictMarker = anode.NewObjectMarker(name)
	ob.propDict = anode.NewComposite(anode.KindTable, name+" property dictionary")
	ob.methDict = anode.NewComposite(anode.KindTable, name+" method dictionary")
	ob.methDictSize = anode.NewComputedWord(name+" method count", func() uint16 { return uint16(ob.numMethods) })

	u.ObjDict.Append(ob.dictMarker)
	u.ObjDict.Append(ob.propDict)
	u.ObjDict.Append(ob.methDictSize)
	u.ObjDict.Append(ob.methDict)

	return ob
}

// Node returns the heap-resident marker identifying this object — the
// target of an object-id load (anode.AddrRef) or a superclass's
// species-to-instance reference.
func (ob *ObjectBuilder) Node() anode.Node { return ob.marker }

// appendPropDictEntry records selNum in this object's own property
// dictionary. Populated only for classes (see NewObjectBuilder's
// isInstance doc).
func (ob *ObjectBuilder) appendPropDictEntry(selNum uint16) {
	if ob.isInstance {
		return
	}
	ob.propDict.Append(anode.NewWord(selNum, "selector"))
}

// AppendIntProperty lays out a plain tagged, integer-valued property
// (symtab.PropTagged): a raw word in the heap property table.
func (ob *ObjectBuilder) AppendIntProperty(name string, selNum uint16, value int32) {
	ob.props.Append(anode.NewWord(uint16(value), name))
	ob.appendPropDictEntry(selNum)
}

// AppendOffsetProperty lays out a property whose value is another
// heap node's offset (symtab.PropText and symtab.PropOffset both take
// this shape — a string literal's Text node, or any other heap
// target). It uses the same anode.DispatchEntry conditional-fixup
// mechanism a dispatch-table slot does: a fixup is added only if the
// target turns out to live in the heap stream, which a string
// literal's Text node always does.
func (ob *ObjectBuilder) AppendOffsetProperty(name string, selNum uint16, target *forwardref.Ref[anode.Node]) {
	entry := anode.NewDispatchEntry(ob.u.Heap, name)
	chainRef(&entry.Target, target)
	ob.props.Append(entry)
	ob.appendPropDictEntry(selNum)
}

// AppendPropDictProperty lays out a -propdict- property
// (symtab.PropDict): a heap entry pointing at this same object's own
// property dictionary — an instance's entry targets its own (empty)
// propDict, a class's its own populated one — so the reference
// resolves synchronously here, with no forward-reference chaining
// required.
func (ob *ObjectBuilder) AppendPropDictProperty(name string, selNum uint16) {
	entry := anode.NewDispatchEntry(ob.u.Heap, name)
	_ = entry.Target.Resolve(ob.propDict)
	ob.props.Append(entry)
	ob.appendPropDictEntry(selNum)
}

// AppendMethodDictProperty lays out a -methdict- property
// (symtab.PropMethDict): a heap entry pointing at this object's own
// method-count word (methDictSize), the separate word laid out
// immediately before the method dictionary table proper, so the
// entry's target offset is two bytes below methDict's own offset.
func (ob *ObjectBuilder) AppendMethodDictProperty(name string, selNum uint16) {
	entry := anode.NewDispatchEntry(ob.u.Heap, name)
	_ = entry.Target.Resolve(ob.methDictSize)
	ob.props.Append(entry)
	ob.appendPropDictEntry(selNum)
}

// AppendMethod lays out a method selector: a selector-number word
// plus a method-ref entry in this object's hunk method dictionary,
// and (per the type doc) a matching method-ref entry in the heap
// property table.
//
// kind distinguishes a directly-resolved local method (target = the
// method's own code block, reached once code resolves) from a tagged
// one, routed one further level of indirection through the unit's
// dispatch table at index — tagged selectors are addressed by table
// slot rather than by a statically known code offset, the same
// indirection a module's public export needs.
func (ob *ObjectBuilder) AppendMethod(name string, selNum uint16, kind symtab.MethodKind, code *forwardref.Ref[anode.Node], disp *DispatchTable, index int) {
	methEntry := anode.NewDispatchEntry(ob.u.Heap, name)
	heapEntry := anode.NewDispatchEntry(ob.u.Heap, name)

	switch kind {
	case symtab.MethodTagged:
		disp.AddPublic(index, name, code)
		target := disp.Entry(index)
		_ = methEntry.Target.Resolve(target)
		_ = heapEntry.Target.Resolve(target)
	default: // symtab.MethodLocal
		chainRef(&methEntry.Target, code)
		chainRef(&heapEntry.Target, code)
	}

	ob.methDict.Append(anode.NewWord(selNum, "selector"))
	ob.methDict.Append(methEntry)
	ob.numMethods++

	ob.props.Append(heapEntry)
	ob.appendPropDictEntry(selNum)
}

// classBit is the -info- flag marking an object as a class template.
// Cleared for instances at layout time.
const classBit = 0x0001

// fillBuiltinProperties overwrites the reserved property slots whose
// values the layout itself determines: -size- holds the property
// count, -script- holds the species number, and an instance's -info-
// has classBit cleared. Runs before any property word is emitted so
// the declared initial values (usually inherited from the superclass
// template) never leak into the output.
func fillBuiltinProperties(obj *symtab.Object) {
	numProps := 0
	for _, sel := range obj.Selectors {
		if !sel.IsMethod {
			numProps++
		}
	}
	for _, sel := range obj.Selectors {
		if sel.IsMethod {
			continue
		}
		switch sel.Name {
		case "-size-":
			sel.InitialValue = symtab.IntLiteral(int32(numProps))
		case "-script-":
			sel.InitialValue = symtab.IntLiteral(int32(obj.Species))
		case "-info-":
			if !obj.IsClass {
				sel.InitialValue = symtab.IntLiteral(sel.InitialValue.Int &^ classBit)
			}
		}
	}
}

// BuildObject lays out obj's full property list and dictionary,
// selector by selector:
// every selector in obj.Selectors (for an object built with
// symtab.Object.Clone, that includes each selector duplicated from the
// superclass, overridden or not) gets
// exactly one heap property-table entry, and a class additionally
// records every selector's number in its own property dictionary.
func BuildObject(u *Unit, obj *symtab.Object) *ObjectBuilder {
	fillBuiltinProperties(obj)
	ob := NewObjectBuilder(u, obj.Name, !obj.IsClass)
	for _, sel := range obj.Selectors {
		if sel.IsMethod {
			ob.AppendMethod(sel.Name, sel.Number, sel.MethKind, &sel.Code, u.Disp, int(sel.Number))
			continue
		}
		switch sel.PropKind {
		case symtab.PropDict:
			ob.AppendPropDictProperty(sel.Name, sel.Number)
		case symtab.PropMethDict:
			ob.AppendMethodDictProperty(sel.Name, sel.Number)
		case symtab.PropText, symtab.PropOffset:
			ob.AppendOffsetProperty(sel.Name, sel.Number, &sel.InitialValue.Text)
		default: // symtab.PropTagged
			ob.AppendIntProperty(sel.Name, sel.Number, sel.InitialValue.Int)
		}
	}
	return ob
}
