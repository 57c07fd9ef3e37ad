package vocab

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dr8co/sciasm/internal/symtab"
)

func testClasses() []ClassEntry {
	root := symtab.NewObject("Obj", true)
	root.Species = 0
	root.AddSelector(symtab.NewPropertySelector("x", 3, symtab.PropTagged, symtab.IntLiteral(1)))
	root.AddSelector(symtab.NewMethodSelector("doit", 8, symtab.MethodLocal))

	act := root.Clone("Act", true)
	act.Species = 2
	root.AddChild(act)

	door := root.Clone("Door", true)
	door.Species = 5
	root.AddChild(door)

	return []ClassEntry{
		{Obj: root, Script: 0},
		{Obj: act, Script: 7},
		{Obj: door, Script: 3},
	}
}

func TestWriteSelectorsEndianness(t *testing.T) {
	sels := []Selector{{Name: "x", Number: 3}}

	var le, be bytes.Buffer
	if err := WriteSelectors(&le, sels, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteSelectors(&be, sels, true); err != nil {
		t.Fatal(err)
	}

	wantLE := []byte{1, 0, 3, 0, 1, 0, 'x'}
	wantBE := []byte{0, 1, 0, 3, 0, 1, 'x'}
	if !bytes.Equal(le.Bytes(), wantLE) {
		t.Errorf("little-endian selector vocab = %v, want %v", le.Bytes(), wantLE)
	}
	if !bytes.Equal(be.Bytes(), wantBE) {
		t.Errorf("big-endian selector vocab = %v, want %v", be.Bytes(), wantBE)
	}
}

func TestSelectorsFromTable(t *testing.T) {
	table := symtab.NewTable()
	for _, d := range []struct {
		name string
		num  int
	}{{"doit", 8}, {"x", 3}, {"name", 20}} {
		sym := table.Define(d.name, symtab.KindSelector)
		sym.Value = d.num
	}
	table.Define("proc", symtab.KindProcedure)

	sels := SelectorsFromTable(table)
	if len(sels) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(sels))
	}
	for i := 1; i < len(sels); i++ {
		if sels[i-1].Number >= sels[i].Number {
			t.Fatalf("selectors not sorted by number: %v", sels)
		}
	}
}

func TestWriteClassTableCoversSpeciesRange(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClassTable(&buf, testClasses(), false); err != nil {
		t.Fatal(err)
	}
	// Count word 6 (species 0..5), then script words 0,0,7,0,0,3.
	want := []byte{6, 0, 0, 0, 0, 0, 7, 0, 0, 0, 0, 0, 3, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("class table = %v, want %v", buf.Bytes(), want)
	}
}

func TestWriteClassdefs(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClassdefs(&buf, testClasses()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"(classdef Obj", "(classdef Act", "(classdef Door",
		"script# 7", "class# 2", "x 1", "doit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("classdef output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHierarchy(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHierarchy(&buf, testClasses()); err != nil {
		t.Fatal(err)
	}
	want := "Obj\n\tAct\n\tDoor\n"
	if buf.String() != want {
		t.Errorf("hierarchy = %q, want %q", buf.String(), want)
	}
}

func TestWriteOffsets(t *testing.T) {
	root := symtab.NewObject("Obj", true)
	root.Species = 1
	root.AddSelector(symtab.NewPropertySelector("x", 3, symtab.PropTagged, symtab.IntLiteral(0)))
	root.AddSelector(symtab.NewMethodSelector("doit", 8, symtab.MethodLocal))
	root.AddSelector(symtab.NewPropertySelector("y", 4, symtab.PropTagged, symtab.IntLiteral(0)))

	var buf bytes.Buffer
	if err := WriteOffsets(&buf, []ClassEntry{{Obj: root, Script: 0}}, false); err != nil {
		t.Fatal(err)
	}
	// species 1, 2 properties, x at byte 0, y at byte 2; the method
	// occupies no property slot.
	want := []byte{1, 0, 2, 0, 3, 0, 0, 0, 4, 0, 2, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("offsets vocab = %v, want %v", buf.Bytes(), want)
	}
}
