// Package diag carries the line-context an input-format violation should be
// reported with. The original checker kept this as a process-wide history
// list (analysis/error_handler.py); here it is an explicit object threaded
// through the parser instead, per the "no process-wide state" design note.
package diag

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Context accumulates the most recently seen input lines so a fatal parse
// error can be reported with enough surrounding context to diagnose it.
// It is cleared after each successfully handled line.
type Context struct {
	lines []string
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Note records a line of context, in order.
func (c *Context) Note(line string) {
	c.lines = append(c.lines, line)
}

// Clear discards any recorded context, called after a line is fully handled.
func (c *Context) Clear() {
	c.lines = c.lines[:0]
}

// Fatal wraps cause with the currently recorded context and returns an error
// suitable for propagating out of the parser to a CLI's fatal-exit path. The
// caller is expected to discard partial output on receiving this error, per
// spec.md §7: "any one malformed path taints downstream statistics; salvage
// is unsafe."
func (c *Context) Fatal(cause error) error {
	if len(c.lines) == 0 {
		return xerrors.Errorf("autoepex: %w", cause)
	}
	return xerrors.Errorf("autoepex: %w\ncontext:\n%s", cause, strings.Join(c.lines, "\n"))
}

// Fatalf is Fatal with a formatted cause.
func (c *Context) Fatalf(format string, args ...interface{}) error {
	return c.Fatal(fmt.Errorf(format, args...))
}
