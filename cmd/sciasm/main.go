// sciasm compiles pre-parsed script units into heap and hunk images
// for a 16-bit stack-based virtual machine.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dr8co/sciasm/internal/codegen"
	"github.com/dr8co/sciasm/internal/compiler"
	"github.com/dr8co/sciasm/internal/dblock"
	"github.com/dr8co/sciasm/internal/diag"
	"github.com/dr8co/sciasm/internal/frontend"
	"github.com/dr8co/sciasm/internal/iosink"
	"github.com/dr8co/sciasm/internal/vocab"
)

const version = "0.1.0"

// Exit codes per the documented CLI contract: 0 success, 1 CLI error,
// 3 fatal compile error or I/O failure, otherwise the error count.
const (
	exitOK    = 0
	exitUsage = 1
	exitFatal = 3
)

// printUsage displays custom usage information
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `sciasm script compiler v%s

USAGE:
    %s [OPTIONS] <unit.json>...

DESCRIPTION:
    sciasm lowers already-parsed script units (JSON descriptions of the
    program's expression trees, objects, and tables) into a heap image
    (N.hep), a hunk image (N.scr), and their relocation tables, updating
    the persistent selector and class databases on a clean compile.

OPTIONS:
    -a                      Abort immediately if the class-database lock is held
    -d                      Include line-number and file-name debug opcodes
    -D NAME[=VALUE]         Pre-define a symbol (repeatable)
    -g <n>                  Maximum variable block size (default 750)
    -l                      Produce a listing file (N.sl) alongside object output
    -n                      Suppress auto-generation of the name property
    -o <dir>                Output directory for generated files
    -O                      Also emit the property-offsets vocabulary file
    -s                      Report forward-referenced selectors as info
    -u                      Skip taking the class-database lock
    -v                      Verbose progress output
    -w                      Emit words high-byte-first
    -z                      Disable peephole optimization
    -t <dialect>            Target dialect: SCI_1_1 (default) or SCI_2
    -I <dir>                Append to the include search path (repeatable)
    --selector_file <name>  Selector vocabulary file name
    --classdef_file <name>  Class definition file name
    --system_header <name>  System header file name
    --game_header <name>    Game header file name
    --version               Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Compile one unit into the current directory
    %s 0.json

    # Compile several units big-endian, with listings, into build/
    %s -w -l -o build 0.json 1.json 2.json

    # Target the newer dialect with debug opcodes
    %s -t SCI_2 -d 100.json

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

// stringList collects a repeatable string flag (-D, -I).
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// options carries every parsed flag through the compile run.
type options struct {
	abortIfLocked bool
	debug         bool
	defines       stringList
	maxVars       int
	listing       bool
	noAutoName    bool
	outDir        string
	offsetsVocab  bool
	reportSels    bool
	skipLock      bool
	verbose       bool
	bigEndian     bool
	noOptimize    bool
	dialect       compiler.Dialect

	selectorFile string
	classdefFile string
	systemHeader string
	gameHeader   string
	includes     stringList
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = printUsage

	var opts options
	var dialectName string
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.BoolVar(&opts.abortIfLocked, "a", false, "Abort if the class-database lock is held")
	flag.BoolVar(&opts.debug, "d", false, "Include debug opcodes")
	flag.Var(&opts.defines, "D", "Pre-define a symbol (NAME[=VALUE], repeatable)")
	flag.IntVar(&opts.maxVars, "g", 750, "Maximum variable block size")
	flag.BoolVar(&opts.listing, "l", false, "Produce a listing file")
	flag.BoolVar(&opts.noAutoName, "n", false, "Suppress auto-generation of the name property")
	flag.StringVar(&opts.outDir, "o", "", "Output directory")
	flag.BoolVar(&opts.offsetsVocab, "O", false, "Emit the property-offsets vocabulary")
	flag.BoolVar(&opts.reportSels, "s", false, "Report forward-referenced selectors as info")
	flag.BoolVar(&opts.skipLock, "u", false, "Skip taking the class-database lock")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose progress output")
	flag.BoolVar(&opts.bigEndian, "w", false, "Emit words high-byte-first")
	flag.BoolVar(&opts.noOptimize, "z", false, "Disable peephole optimization")
	flag.StringVar(&dialectName, "t", "SCI_1_1", "Target dialect (SCI_1_1 or SCI_2)")
	flag.StringVar(&opts.selectorFile, "selector_file", "selector.voc", "Selector vocabulary file name")
	flag.StringVar(&opts.classdefFile, "classdef_file", "classdef", "Class definition file name")
	flag.StringVar(&opts.systemHeader, "system_header", "", "System header file name")
	flag.StringVar(&opts.gameHeader, "game_header", "", "Game header file name")
	flag.Var(&opts.includes, "I", "Append to the include search path (repeatable)")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("sciasm script compiler v%s\n", version)
		return exitOK
	}

	switch dialectName {
	case "SCI_1_1":
		opts.dialect = compiler.SCI11
	case "SCI_2":
		opts.dialect = compiler.SCI2
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown target dialect %q (want SCI_1_1 or SCI_2)\n", dialectName)
		return exitUsage
	}

	sources := flag.Args()
	if len(sources) == 0 {
		flag.Usage()
		return exitUsage
	}

	return compile(&opts, sources)
}

// compile drives the whole run: one Program per source unit, then the
// database updates under the class-database lock if every unit came
// through error-free.
func compile(opts *options, sources []string) int {
	d := diag.NewCollector(os.Stderr)

	out, err := iosink.NewDir(opts.outDir)
	if err != nil {
		d.Fatalf("", 0, "%v", err)
		return exitFatal
	}

	for _, name := range []string{opts.systemHeader, opts.gameHeader} {
		if name == "" {
			continue
		}
		if _, err := resolveInclude(name, opts.includes); err != nil {
			d.Fatalf(name, 0, "%v", err)
			return exitFatal
		}
	}

	lock := dblock.NoOp()
	if !opts.skipLock {
		lock = dblock.New(out.Path("classdb.lock"), opts.abortIfLocked, os.Stderr)
	}
	if err := lock.Acquire(); err != nil {
		d.Fatalf("", 0, "%v", err)
		return exitFatal
	}
	defer func() { _ = lock.Release() }()

	var classes []vocab.ClassEntry
	var selectors []vocab.Selector

	for _, source := range sources {
		verbosef(opts, "compiling %s", source)
		entry, sels, ok := compileUnit(opts, out, d, source)
		if !ok {
			return exitFatal
		}
		classes = append(classes, entry...)
		selectors = mergeSelectors(selectors, sels)
	}

	if d.ShouldUpdateDatabases() {
		verbosef(opts, "updating selector and class databases")
		if err := writeDatabases(opts, out, selectors, classes); err != nil {
			d.Fatalf("", 0, "%v", err)
			return exitFatal
		}
	} else {
		verbosef(opts, "%d error(s): databases left untouched", d.ErrorCount())
	}

	for _, item := range d.Items() {
		if item.Severity == diag.Fatal {
			return exitFatal
		}
	}
	return d.ErrorCount()
}

// compileUnit compiles one source unit end to end and writes its
// output files. A false return means a fatal condition was reported.
func compileUnit(opts *options, out *iosink.Dir, d *diag.Collector, source string) ([]vocab.ClassEntry, []vocab.Selector, bool) {
	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		d.Fatalf(source, 0, "reading unit: %v", err)
		return nil, nil, false
	}
	unit, err := frontend.Decode(data)
	if err != nil {
		d.Fatalf(source, 0, "%v", err)
		return nil, nil, false
	}

	p := codegen.NewProgram(opts.dialect, opts.bigEndian, opts.debug, d, opts.listing)
	p.Compiler.DisablePeephole = opts.noOptimize

	for _, def := range opts.defines {
		name, value := splitDefine(def)
		p.DeclareDefine(name, value)
		verbosef(opts, "predefined %s = %d", name, value)
	}

	res, err := frontend.Build(p, unit, source, frontend.Options{
		AutoName:        !opts.noAutoName,
		ReportSelectors: opts.reportSels,
	})
	if err != nil {
		d.Errorf(source, 0, "%v", err)
		return nil, nil, true
	}

	p.CheckUnresolvedSymbols(source, res.Symbols)
	if p.Vars.Len() > opts.maxVars {
		d.Errorf(source, 0, "variable block overflow: %d slots, limit %d", p.Vars.Len(), opts.maxVars)
	}

	p.Finish()

	script := int(unit.Script)
	if err := writeStream(out, fmt.Sprintf("%d.hep", script), p.EmitHeap); err != nil {
		d.Fatalf(source, 0, "%v", err)
		return nil, nil, false
	}
	if err := writeStream(out, fmt.Sprintf("%d.scr", script), p.EmitHunk); err != nil {
		d.Fatalf(source, 0, "%v", err)
		return nil, nil, false
	}
	if err := writeInfo(out, script, source); err != nil {
		d.Fatalf(source, 0, "%v", err)
		return nil, nil, false
	}
	if opts.listing {
		if err := writeListing(out, script, p); err != nil {
			d.Fatalf(source, 0, "%v", err)
			return nil, nil, false
		}
	}
	verbosef(opts, "wrote %d.hep and %d.scr", script, script)

	entries := make([]vocab.ClassEntry, 0, len(res.Classes))
	for _, cls := range res.Classes {
		entries = append(entries, vocab.ClassEntry{Obj: cls, Script: unit.Script})
	}
	return entries, vocab.SelectorsFromTable(p.Syms.Global()), true
}

// writeStream writes one emitted output stream to a fresh file.
func writeStream(out *iosink.Dir, name string, emit func(w io.Writer) error) error {
	f, err := out.Create(name)
	if err != nil {
		return err
	}
	if err := emit(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// writeInfo writes script N's one-line N.inf file naming the top-level
// source path.
func writeInfo(out *iosink.Dir, script int, source string) error {
	f, err := out.Create(fmt.Sprintf("%d.inf", script))
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	_, werr := fmt.Fprintln(f, abs)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// writeListing writes script N's N.sl listing file.
func writeListing(out *iosink.Dir, script int, p *codegen.Program) error {
	f, err := out.Create(fmt.Sprintf("%d.sl", script))
	if err != nil {
		return err
	}
	p.List(codegen.NewWriterListSink(f))
	return f.Close()
}

// writeDatabases persists the selector and class databases after a
// clean compile: selector vocabulary, class-table vocabulary, classdef
// file, class hierarchy file, and optionally the property-offsets
// vocabulary.
func writeDatabases(opts *options, out *iosink.Dir, selectors []vocab.Selector, classes []vocab.ClassEntry) error {
	sort.Slice(selectors, func(i, j int) bool { return selectors[i].Number < selectors[j].Number })
	if err := writeDatabase(out, opts.selectorFile, func(f *os.File) error {
		return vocab.WriteSelectors(f, selectors, opts.bigEndian)
	}); err != nil {
		return err
	}
	if err := writeDatabase(out, "classtbl.voc", func(f *os.File) error {
		return vocab.WriteClassTable(f, classes, opts.bigEndian)
	}); err != nil {
		return err
	}
	if err := writeDatabase(out, opts.classdefFile, func(f *os.File) error {
		return vocab.WriteClassdefs(f, classes)
	}); err != nil {
		return err
	}
	if err := writeDatabase(out, "classes", func(f *os.File) error {
		return vocab.WriteHierarchy(f, classes)
	}); err != nil {
		return err
	}
	if opts.offsetsVocab {
		if err := writeDatabase(out, "offsets.voc", func(f *os.File) error {
			return vocab.WriteOffsets(f, classes, opts.bigEndian)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDatabase(out *iosink.Dir, name string, write func(f *os.File) error) error {
	f, err := out.Create(name)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// splitDefine parses a -D NAME[=VALUE] argument; a missing or
// non-numeric value defines the name as 1, matching a bare
// `(define NAME)`.
func splitDefine(def string) (string, int) {
	name, value, found := strings.Cut(def, "=")
	if !found {
		return name, 1
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return name, 1
	}
	return name, n
}

// resolveInclude searches for name in the current directory, then each
// -I directory in order.
func resolveInclude(name string, includes []string) (string, error) {
	candidates := append([]string{"."}, includes...)
	for _, dir := range candidates {
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", fmt.Errorf("include %q not found in search path", name)
}

// mergeSelectors folds one unit's selector set into the run-wide set,
// keeping the first definition of each number.
func mergeSelectors(all, unit []vocab.Selector) []vocab.Selector {
	seen := make(map[uint16]bool, len(all))
	for _, s := range all {
		seen[s.Number] = true
	}
	for _, s := range unit {
		if !seen[s.Number] {
			all = append(all, s)
			seen[s.Number] = true
		}
	}
	return all
}

func verbosef(opts *options, format string, args ...any) {
	if !opts.verbose {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}
