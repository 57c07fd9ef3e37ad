package frontend

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/anode"
	"github.com/dr8co/sciasm/internal/codegen"
	"github.com/dr8co/sciasm/internal/symtab"
)

// Options selects the build behaviors the CLI surface exposes.
type Options struct {
	// AutoName gives an object missing an explicit `name` property one
	// whose value is the object's source name as a text reference,
	// provided a `name` selector is declared in the unit. Suppressed by
	// the -n flag.
	AutoName bool
	// ReportSelectors reports implicitly-installed selectors as info
	// diagnostics (the -s flag).
	ReportSelectors bool
}

// Result is everything Build hands back to the driver: the symbols
// whose ForwardRefs must be resolved by end of unit, and the class and
// instance declarations in source order, forest-linked, for classdef
// and hierarchy writing.
type Result struct {
	Symbols []*symtab.Symbol
	Classes []*symtab.Object
	Objects []*symtab.Object
}

// Build declares every name a UnitFile's procedures, classes, and
// objects can reference, then compiles their bodies in sequence,
// driving p exactly the way internal/codegen's own scenario tests
// drive a Program by hand: declare first (so forward references
// resolve), compile second. file names the diagnostics this unit's
// compile errors are attributed to.
func Build(p *codegen.Program, u *UnitFile, file string, opts Options) (*Result, error) {
	res := &Result{}

	for _, g := range u.Globals {
		lv := literalValue(g.IsStr, g.Value)
		if g.IsStr {
			text := p.Compiler.Strings.Intern(g.Text)
			_ = lv.Text.Resolve(anode.Node(text))
		}
		p.DeclareGlobal(g.Name, &lv)
	}

	for _, s := range u.Selectors {
		p.DeclareSelector(s.Name, s.Number)
	}

	// Declare every procedure name up front so a call compiled before
	// its callee appears later in Procedures still resolves.
	procSyms := make(map[string]*symtab.Symbol, len(u.Procedures))
	for _, decl := range u.Procedures {
		sym := p.DeclareProcedure(decl.Name)
		procSyms[decl.Name] = sym
		res.Symbols = append(res.Symbols, sym)
	}

	classObjs := make(map[string]*symtab.Object, len(u.Classes))
	for _, c := range u.Classes {
		p.DeclareClass(c.Name, c.Species)
	}

	for _, c := range u.Classes {
		obj, sym, err := buildClassOrObject(p, c, true, classObjs, file, opts)
		if err != nil {
			return nil, err
		}
		classObjs[c.Name] = obj
		res.Classes = append(res.Classes, obj)
		res.Symbols = append(res.Symbols, sym)
	}

	for _, o := range u.Objects {
		obj, sym, err := buildClassOrObject(p, o, false, classObjs, file, opts)
		if err != nil {
			return nil, err
		}
		res.Objects = append(res.Objects, obj)
		res.Symbols = append(res.Symbols, sym)
	}

	for _, decl := range u.Procedures {
		sym := procSyms[decl.Name]
		body, err := decodeList(decl.Body)
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", decl.Name, err)
		}
		public := -1
		if decl.Public != nil {
			public = *decl.Public
		}
		p.CompileProcedure(sym, file, decl.Temps, body, public)
	}

	return res, nil
}

// buildClassOrObject lays out one class or instance declaration: for a
// class, a fresh symtab.Object; for an instance, a superclass's Clone
// (an instance inherits selectors by duplicating from its superclass
// at definition time, then overriding), then applies decl's
// own selector list — overriding an inherited selector of the same
// name in place, or appending a new one — compiles every method body,
// lays the object out in the unit, and declares its global symbol.
func buildClassOrObject(p *codegen.Program, decl ObjectDecl, isClass bool, classObjs map[string]*symtab.Object, file string, opts Options) (*symtab.Object, *symtab.Symbol, error) {
	var obj *symtab.Object
	var super *symtab.Object
	if decl.Superclass != "" {
		s, ok := classObjs[decl.Superclass]
		if !ok {
			return nil, nil, fmt.Errorf("%s: unknown superclass %q", decl.Name, decl.Superclass)
		}
		super = s
		obj = super.Clone(decl.Name, isClass)
	} else {
		obj = symtab.NewObject(decl.Name, isClass)
	}
	obj.Species = decl.Species
	if super != nil {
		super.AddChild(obj)
	}

	for _, sd := range decl.Selectors {
		sel, err := buildSelector(p, obj, sd, file, opts)
		if err != nil {
			return nil, nil, err
		}
		if existing := obj.FindSelector(sd.Name); existing != nil {
			*existing = *sel
		} else {
			obj.AddSelector(sel)
		}
	}

	if opts.AutoName && obj.FindSelector("name") == nil {
		autoNameObject(p, obj)
	}

	ob := p.BuildObject(obj)

	var kind symtab.Kind = symtab.KindObject
	if isClass {
		kind = symtab.KindClass
	}
	objSym, ok := p.Syms.Global().Resolve(decl.Name)
	if !ok {
		objSym = p.Syms.Global().Define(decl.Name, kind)
		objSym.Value = int(decl.Species)
	}
	objSym.Object = obj
	if err := objSym.Ref.Resolve(ob.Node()); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", decl.Name, err)
	}

	// Methods declared on this object need the object built (so
	// property resolution inside their bodies can see sibling
	// selectors) before their bodies compile.
	for _, sd := range decl.Selectors {
		if !sd.IsMethod || sd.Proc == nil {
			continue
		}
		sel := obj.FindSelector(sd.Name)
		if sel == nil {
			continue
		}
		body, err := decodeList(sd.Proc.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", decl.Name, sd.Name, err)
		}
		p.CompileMethod(obj, sel, file, sd.Proc.Temps, body)
	}

	return obj, objSym, nil
}

// autoNameObject appends a `name` text property holding the object's
// own source name. Applies only when the unit declares a `name`
// selector at all; an undeclared `name` selector has no number to
// install the property under, so the object is left unnamed.
func autoNameObject(p *codegen.Program, obj *symtab.Object) {
	sym, ok := p.Syms.Global().Resolve("name")
	if !ok || sym.Kind != symtab.KindSelector {
		return
	}
	text := p.Compiler.Strings.Intern(obj.Name)
	initial := symtab.LiteralValue{IsText: true}
	_ = initial.Text.Resolve(anode.Node(text))
	obj.AddSelector(symtab.NewPropertySelector("name", uint16(sym.Value), symtab.PropText, initial))
}

func buildSelector(p *codegen.Program, obj *symtab.Object, sd SelectorDecl, file string, opts Options) (*symtab.Selector, error) {
	number := sd.Number
	if number == 0 && !sd.ExplicitNumber {
		if sym, ok := p.Syms.Global().Resolve(sd.Name); ok && sym.Kind == symtab.KindSelector {
			number = uint16(sym.Value)
		} else {
			// Never declared: install under the next free number.
			number = nextSelectorNumber(p)
			sym := p.Syms.Global().Define(sd.Name, symtab.KindSelector)
			sym.Value = int(number)
			p.Diag.Warningf(file, 0, "selector %q implicitly installed as %d", sd.Name, number)
			if opts.ReportSelectors {
				p.Diag.Infof(file, 0, "forward-referenced selector %q", sd.Name)
			}
		}
	}

	if sd.IsMethod {
		kind := symtab.MethodLocal
		if sd.MethKind == "tagged" {
			kind = symtab.MethodTagged
		}
		return symtab.NewMethodSelector(sd.Name, number, kind), nil
	}

	var propKind symtab.PropertyKind
	var initial symtab.LiteralValue
	switch sd.PropKind {
	case "text":
		propKind = symtab.PropText
		text := p.Compiler.Strings.Intern(sd.Text)
		initial = symtab.LiteralValue{IsText: true}
		_ = initial.Text.Resolve(anode.Node(text))
	case "offset":
		propKind = symtab.PropOffset
	case "propdict":
		propKind = symtab.PropDict
	case "methdict":
		propKind = symtab.PropMethDict
	default:
		propKind = symtab.PropTagged
		initial = symtab.IntLiteral(sd.Value)
	}
	return symtab.NewPropertySelector(sd.Name, number, propKind, initial), nil
}

// nextSelectorNumber returns one past the highest selector number
// declared so far in the global scope.
func nextSelectorNumber(p *codegen.Program) uint16 {
	max := -1
	for _, sym := range p.Syms.Global().Symbols() {
		if sym.Kind == symtab.KindSelector && sym.Value > max {
			max = sym.Value
		}
	}
	return uint16(max + 1)
}
