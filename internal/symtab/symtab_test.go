package symtab

import "testing"

func TestTableResolveRecursesToParent(t *testing.T) {
	global := NewTable()
	global.Define("foo", KindGlobalVar)

	local := global.Enter()
	local.Define("bar", KindLocalVar)

	tests := []struct {
		name     string
		wantKind Kind
		wantOK   bool
	}{
		{"bar", KindLocalVar, true},
		{"foo", KindGlobalVar, true},
		{"missing", 0, false},
	}

	for _, tt := range tests {
		sym, ok := local.Resolve(tt.name)
		if ok != tt.wantOK {
			t.Errorf("Resolve(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if ok && sym.Kind != tt.wantKind {
			t.Errorf("Resolve(%q).Kind = %v, want %v", tt.name, sym.Kind, tt.wantKind)
		}
	}
}

func TestTableShadowing(t *testing.T) {
	global := NewTable()
	global.Define("x", KindGlobalVar)

	local := global.Enter()
	local.Define("x", KindLocalVar)

	sym, ok := local.Resolve("x")
	if !ok || sym.Kind != KindLocalVar {
		t.Errorf("inner scope definition did not shadow outer: got %+v, ok=%v", sym, ok)
	}
	outerSym, ok := global.Resolve("x")
	if !ok || outerSym.Kind != KindGlobalVar {
		t.Errorf("outer scope definition was mutated by shadowing: got %+v, ok=%v", outerSym, ok)
	}
}

func TestStackPushPopRetainsWhenListing(t *testing.T) {
	s := NewStack(true)
	s.Define("g", KindGlobalVar)

	s.Push()
	s.Define("p", KindParam)
	if _, ok := s.Resolve("g"); !ok {
		t.Fatalf("nested scope could not resolve outer symbol")
	}
	s.Pop()

	if _, ok := s.Resolve("p"); ok {
		t.Errorf("popped scope's symbol still resolvable from outer scope")
	}
	retained := s.Retained()
	if len(retained) != 1 {
		t.Fatalf("len(Retained()) = %d, want 1", len(retained))
	}
	if _, ok := retained[0].Resolve("p"); !ok {
		t.Errorf("retained popped scope lost its symbol")
	}
}

func TestStackPopDropsWhenNotListing(t *testing.T) {
	s := NewStack(false)
	s.Push()
	s.Define("p", KindParam)
	s.Pop()

	if len(s.Retained()) != 0 {
		t.Errorf("Retained() non-empty with retainPopped=false")
	}
}

func TestObjectCloneDuplicatesSelectorsNotReferences(t *testing.T) {
	base := NewObject("Base", true)
	base.Species = 3
	base.AddSelector(NewPropertySelector("hp", 1, PropTagged, IntLiteral(10)))

	derived := base.Clone("Derived", true)
	if derived.Superclass != 3 {
		t.Errorf("Clone did not carry superclass species: got %d", derived.Superclass)
	}
	if len(derived.Selectors) != 1 {
		t.Fatalf("len(derived.Selectors) = %d, want 1", len(derived.Selectors))
	}

	derived.Selectors[0].InitialValue = IntLiteral(20)
	if base.Selectors[0].InitialValue.Int != 10 {
		t.Errorf("overriding the clone's selector mutated the base's selector")
	}
}

func TestObjectAddChildAppendsInOrder(t *testing.T) {
	parent := NewObject("Parent", true)
	first := NewObject("First", true)
	second := NewObject("Second", true)
	parent.AddChild(first)
	parent.AddChild(second)

	if parent.FirstChild != first {
		t.Fatalf("FirstChild = %v, want %v", parent.FirstChild, first)
	}
	if first.NextSibling != second {
		t.Errorf("first.NextSibling = %v, want %v", first.NextSibling, second)
	}
	if second.Parent != parent || first.Parent != parent {
		t.Errorf("children's Parent not set to parent")
	}
}

func TestVarListAppend(t *testing.T) {
	var vl VarList
	idx0 := vl.Append(nil)
	lit := IntLiteral(42)
	idx1 := vl.Append(&lit)

	if idx0 != 0 || idx1 != 1 {
		t.Errorf("Append indices = %d, %d, want 0, 1", idx0, idx1)
	}
	if vl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", vl.Len())
	}
	if vl.Slots[0] != nil {
		t.Errorf("first slot should be nil (no initial value)")
	}
	if vl.Slots[1].Int != 42 {
		t.Errorf("second slot = %+v, want Int 42", vl.Slots[1])
	}
}
