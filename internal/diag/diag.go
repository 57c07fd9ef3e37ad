// Package diag implements the classified diagnostic collector:
// Fatal/Error/Warning/Info severities, an error count that gates
// persistence of the class/selector databases, and a
// bell-on-first-error side effect. Rendering styles each severity
// with lipgloss when writing to a terminal.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "diag"
	}
}

// Diagnostic is one reported condition: a severity, a message, and the
// source file/line it occurred at (Line is 0 when not applicable).
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Message  string
}

var (
	fatalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

func styleFor(sev Severity) lipgloss.Style {
	switch sev {
	case Fatal:
		return fatalStyle
	case Error:
		return errorStyle
	case Warning:
		return warningStyle
	default:
		return infoStyle
	}
}

// Collector accumulates diagnostics for one compilation run,
// counting errors and warnings. The terminal bell rings on the first
// error; a non-zero error count suppresses updating the persistent
// databases.
type Collector struct {
	out      io.Writer
	NoColor  bool
	items    []Diagnostic
	errors   int
	warnings int
	rangBell bool
}

// NewCollector creates a Collector writing rendered diagnostics to out.
func NewCollector(out io.Writer) *Collector {
	return &Collector{out: out}
}

func (c *Collector) report(sev Severity, file string, line int, format string, args ...any) {
	d := Diagnostic{Severity: sev, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
	c.items = append(c.items, d)
	switch sev {
	case Error, Fatal:
		if c.errors == 0 && c.out != nil {
			_, _ = fmt.Fprint(os.Stderr, "\a") // bell on first error
		}
		c.errors++
	case Warning:
		c.warnings++
	}
	c.print(d)
}

func (c *Collector) print(d Diagnostic) {
	if c.out == nil {
		return
	}
	loc := ""
	if d.File != "" {
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d: ", d.File, d.Line)
		} else {
			loc = fmt.Sprintf("%s: ", d.File)
		}
	}
	line := fmt.Sprintf("%s%s: %s", loc, d.Severity, d.Message)
	if !c.NoColor {
		line = styleFor(d.Severity).Render(line)
	}
	_, _ = fmt.Fprintln(c.out, line)
}

// Infof records an Info diagnostic.
func (c *Collector) Infof(file string, line int, format string, args ...any) {
	c.report(Info, file, line, format, args...)
}

// Warningf records a Warning diagnostic.
func (c *Collector) Warningf(file string, line int, format string, args ...any) {
	c.report(Warning, file, line, format, args...)
}

// Errorf records a counted Error diagnostic; the caller may continue
// compiling.
func (c *Collector) Errorf(file string, line int, format string, args ...any) {
	c.report(Error, file, line, format, args...)
}

// Fatalf records a Fatal diagnostic. Callers abort the process after
// this returns; Fatalf itself does not call os.Exit so the caller can
// release the class-database lock first.
func (c *Collector) Fatalf(file string, line int, format string, args ...any) {
	c.report(Fatal, file, line, format, args...)
}

// ErrorCount returns the number of Error+Fatal diagnostics reported.
func (c *Collector) ErrorCount() int { return c.errors }

// WarningCount returns the number of Warning diagnostics reported.
func (c *Collector) WarningCount() int { return c.warnings }

// Items returns every diagnostic reported so far, in report order.
func (c *Collector) Items() []Diagnostic { return c.items }

// ShouldUpdateDatabases implements the end-of-unit check: a
// non-zero error count suppresses updating the persistent
// selector/class databases even though the .hep/.scr are still
// written.
func (c *Collector) ShouldUpdateDatabases() bool { return c.errors == 0 }
