package compiler

import (
	"golang.org/x/text/unicode/norm"

	"github.com/dr8co/sciasm/internal/anode"
)

// StringPool interns string-literal text into a single text region —
// a composite of anode.Text nodes — deduplicating by normalized value
// so that two source literals with the same text after Unicode
// normalization share one entry in the compiled output.
type StringPool struct {
	region *anode.Composite
	byText map[string]*anode.Text
}

func NewStringPool() *StringPool {
	return &StringPool{
		region: anode.NewComposite(anode.KindTable, "strings"),
		byText: make(map[string]*anode.Text),
	}
}

// Intern returns the anode.Text holding s's NFC-normalized form,
// reusing a prior entry with the same normalized text where possible.
func (p *StringPool) Intern(s string) *anode.Text {
	key := norm.NFC.String(s)
	if t, ok := p.byText[key]; ok {
		return t
	}
	t := anode.NewText(key)
	p.byText[key] = t
	p.region.Append(t)
	return t
}

func (p *StringPool) Region() *anode.Composite { return p.region }
