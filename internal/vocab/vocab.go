// Package vocab writes the per-process database files that persist
// selector and class knowledge across compilations: the selector
// vocabulary, the class-table vocabulary, the textual classdef file,
// the class hierarchy file, and (under -O) the property-offsets
// vocabulary. Multi-byte integers in the binary files follow the same
// endianness as the heap and hunk streams, reusing anode.Sink as the
// writer so the flag is honored in exactly one place.
//
// The driver only calls these when the unit's error count is zero —
// a failed unit never updates the persistent databases.
package vocab

import (
	"fmt"
	"io"
	"sort"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/symtab"
)

// Selector is one selector-vocabulary record.
type Selector struct {
	Name   string
	Number uint16
}

// SelectorsFromTable extracts every selector symbol from the global
// scope, sorted by number.
func SelectorsFromTable(t *symtab.Table) []Selector {
	var sels []Selector
	for _, sym := range t.Symbols() {
		if sym.Kind == symtab.KindSelector {
			sels = append(sels, Selector{Name: sym.Name, Number: uint16(sym.Value)})
		}
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i].Number < sels[j].Number })
	return sels
}

// WriteSelectors writes the selector vocabulary: a count word, then
// per selector a number word, a name-length word, and the name bytes.
func WriteSelectors(w io.Writer, sels []Selector, bigEndian bool) error {
	s := anode.NewSink(w, bigEndian)
	if err := s.WriteWord(uint16(len(sels))); err != nil {
		return err
	}
	for _, sel := range sels {
		if err := s.WriteWord(sel.Number); err != nil {
			return err
		}
		if err := s.WriteWord(uint16(len(sel.Name))); err != nil {
			return err
		}
		if err := s.WriteBytes([]byte(sel.Name)); err != nil {
			return err
		}
	}
	return nil
}

// ClassEntry locates one class: its species number and the script it
// is defined in.
type ClassEntry struct {
	Obj    *symtab.Object
	Script uint16
}

// WriteClassTable writes the class-table vocabulary: a count word
// covering species 0 through the highest declared, then one script
// number word per species (0 for species with no class declared).
func WriteClassTable(w io.Writer, classes []ClassEntry, bigEndian bool) error {
	max := -1
	scripts := make(map[uint16]uint16, len(classes))
	for _, c := range classes {
		scripts[c.Obj.Species] = c.Script
		if int(c.Obj.Species) > max {
			max = int(c.Obj.Species)
		}
	}
	s := anode.NewSink(w, bigEndian)
	if err := s.WriteWord(uint16(max + 1)); err != nil {
		return err
	}
	for species := 0; species <= max; species++ {
		if err := s.WriteWord(scripts[uint16(species)]); err != nil {
			return err
		}
	}
	return nil
}

// WriteClassdefs writes the textual class-definition file, one
// s-expression block per class in declaration order: script, species,
// superclass, then the class's tagged properties with their declared
// initial values and its method selector names.
func WriteClassdefs(w io.Writer, classes []ClassEntry) error {
	for _, c := range classes {
		obj := c.Obj
		if _, err := fmt.Fprintf(w, "(classdef %s\n\tscript# %d\n\tclass# %d\n\tsuper# %d\n", obj.Name, c.Script, obj.Species, obj.Superclass); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\t(properties\n"); err != nil {
			return err
		}
		for _, sel := range obj.Selectors {
			if sel.IsMethod || sel.PropKind != symtab.PropTagged {
				continue
			}
			if _, err := fmt.Fprintf(w, "\t\t%s %d\n", sel.Name, sel.InitialValue.Int); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\t)\n\t(methods\n"); err != nil {
			return err
		}
		for _, sel := range obj.Selectors {
			if !sel.IsMethod {
				continue
			}
			if _, err := fmt.Fprintf(w, "\t\t%s\n", sel.Name); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\t)\n)\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteHierarchy writes the class hierarchy file: every root of the
// forest (a class with no Parent) followed by its subtree, one class
// per line, children indented one tab past their parent. Traversal
// follows the FirstChild/NextSibling links so sibling order matches
// declaration order.
func WriteHierarchy(w io.Writer, classes []ClassEntry) error {
	for _, c := range classes {
		if c.Obj.Parent != nil {
			continue
		}
		if err := writeSubtree(w, c.Obj, 0); err != nil {
			return err
		}
	}
	return nil
}

func writeSubtree(w io.Writer, obj *symtab.Object, depth int) error {
	for i := 0; i < depth; i++ {
		if _, err := io.WriteString(w, "\t"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", obj.Name); err != nil {
		return err
	}
	for child := obj.FirstChild; child != nil; child = child.NextSibling {
		if err := writeSubtree(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// WriteOffsets writes the property-offsets vocabulary (the -O flag):
// per class, a species word and a property-count word, then per
// property a selector-number word and the property's byte offset
// within the object's property table (two bytes per slot, in
// declaration order).
func WriteOffsets(w io.Writer, classes []ClassEntry, bigEndian bool) error {
	s := anode.NewSink(w, bigEndian)
	for _, c := range classes {
		obj := c.Obj
		var props []*symtab.Selector
		for _, sel := range obj.Selectors {
			if !sel.IsMethod {
				props = append(props, sel)
			}
		}
		if err := s.WriteWord(obj.Species); err != nil {
			return err
		}
		if err := s.WriteWord(uint16(len(props))); err != nil {
			return err
		}
		for i, sel := range props {
			if err := s.WriteWord(sel.Number); err != nil {
				return err
			}
			if err := s.WriteWord(uint16(2 * i)); err != nil {
				return err
			}
		}
	}
	return nil
}
