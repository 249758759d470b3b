// Package debugdump wires up the teacher's go.mod entries that are pulled
// in transitively by its analysistest tooling but never imported directly:
// k0kubun/pp, davecgh/go-spew, and mattn/go-colorable. Here they back
// autoepex-infer's -debug/-dump flags and autoepex-check's colored
// terminal report, per SPEC_FULL.md's debug/introspection section.
package debugdump

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/k0kubun/pp"
	"github.com/mattn/go-colorable"
)

// Table pretty-prints v (for autoepex-infer's -debug flag, a program's map
// of function name to its election Decision) with k0kubun/pp's colorized
// struct dump.
func Table(w io.Writer, v interface{}) {
	fmt.Fprintln(w, pp.Sprint(v))
}

// Sdump serializes v (for autoepex-infer's -dump flag, a function's
// election.FinalSpec) with davecgh/go-spew, where the
// output is meant to be attached to a bug-tracker comment rather than read
// on a terminal.
func Sdump(v interface{}) string {
	return spew.Sdump(v)
}

// Severity is a bug-report line's color class, used by ColorWriter.
type Severity int

const (
	SeverityBug Severity = iota
	SeveritySuppressed
)

// ColorWriter wraps stdout with mattn/go-colorable so ANSI severity
// coloring (red for sure bugs, yellow for threshold-suppressed-but-shown
// findings) survives on Windows consoles, matching how go-colorable is
// used for colored test/lint output elsewhere in the ecosystem.
type ColorWriter struct {
	out io.Writer
}

// NewColorWriter wraps os.Stdout.
func NewColorWriter() *ColorWriter {
	return &ColorWriter{out: colorable.NewColorableStdout()}
}

func (c *ColorWriter) Println(severity Severity, line string) {
	switch severity {
	case SeverityBug:
		fmt.Fprintf(c.out, "\x1b[31m%s\x1b[0m\n", line)
	case SeveritySuppressed:
		fmt.Fprintf(c.out, "\x1b[33m%s\x1b[0m\n", line)
	default:
		fmt.Fprintln(c.out, line)
	}
}
