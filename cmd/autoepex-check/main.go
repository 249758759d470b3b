// Command autoepex-check reads an elected ErrorSpec and one or more
// program trace logs, and reports call sites that use a fallible
// function's error-exit result without checking or propagating it, per
// spec.md §6's checker tool surface:
// `autoepex-check <bugs-output-dir> <error-spec-file> <input-log> [...]`.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/autoepex/autoepex/internal/checker"
	"github.com/autoepex/autoepex/internal/debugdump"
	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/pathmodel"
	"github.com/autoepex/autoepex/internal/spec"
	"github.com/autoepex/autoepex/internal/traceline"
	"github.com/autoepex/autoepex/internal/value"
)

func main() {
	args := os.Args[1:]
	if len(args) < 3 {
		log.Fatal("usage: autoepex-check <bugs-output-dir> <error-spec-file> <input-log> [additional input logs ...]")
	}
	bugsDir, specPath, inputLogs := args[0], args[1], args[2:]

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	specFile, err := os.Open(specPath)
	if err != nil {
		log.Fatalf("autoepex-check: %v", err)
	}
	fes, err := spec.Read(specFile)
	specFile.Close()
	if err != nil {
		log.Fatalf("autoepex-check: reading %s: %v", specPath, err)
	}

	c := newCollector(fes)
	for _, logPath := range inputLogs {
		logger.Info().Str("program", logPath).Msg("checking trace log")
		if err := c.processProgram(logPath); err != nil {
			log.Fatalf("autoepex-check: %s: %v", logPath, err)
		}
	}

	sites := c.siteReports()
	reports, total := checker.NewBugsChecker().Check(sites)

	if err := os.MkdirAll(bugsDir, 0o755); err != nil {
		log.Fatalf("autoepex-check: %v", err)
	}
	reportPath := filepath.Join(bugsDir, "report.txt")
	out, err := os.Create(reportPath)
	if err != nil {
		log.Fatalf("autoepex-check: %v", err)
	}
	defer out.Close()

	cw := debugdump.NewColorWriter()
	writeReport(out, cw, reports, total)

	logger.Info().Str("output", reportPath).Int("flagged", total).Msg("check complete")
}

// writeReport emits the bug report: one block per caller, indented
// "<caller>-><callee>(): message" lines, trailing "Total: N". Each site line
// repeats the caller key; the call's own source location is not printed.
// The site lines (not the caller or Total lines) are echoed to the terminal
// with severity coloring.
func writeReport(w *os.File, cw *debugdump.ColorWriter, reports []checker.CallerReport, total int) {
	for _, r := range reports {
		fmt.Fprintf(w, "%s\n", r.Caller)
		for _, s := range r.Sites {
			line := fmt.Sprintf("\t%s->%s(): error return value used without being checked or propagated", s.Caller, s.Function)
			fmt.Fprintln(w, line)
			cw.Println(debugdump.SeverityBug, line)
		}
	}
	fmt.Fprintf(w, "Total: %d\n", total)
}

// siteKey identifies one call site across every traced path that reached
// it: the caller (function:file:line of its traced segment), the callee
// being called, and the exact source location of the call itself.
type siteKey struct {
	caller  string
	callee  string
	siteLoc string
}

// pathObservation pairs one observed call path with the caller's own
// return value at that same trace-line occurrence, so wrapped-ness can be
// decided per path rather than per function — check_specs.py's
// check_site_paths tests path.caller.value.same_assignments against each
// individual segment's value, never a function-wide aggregate.
type pathObservation struct {
	path         *pathmodel.CallPath
	callerReturn *value.Value
}

// collector accumulates, per site, every observed path's disposition
// (spec.md §4.8), using the elected spec to decide which observations are
// error-exits and, for each individual path, whether its own traced
// caller passed the value straight through (wrapped) rather than silently
// dropped it.
type collector struct {
	fes   *spec.FullErrorSpec
	paths map[siteKey][]pathObservation
}

func newCollector(fes *spec.FullErrorSpec) *collector {
	return &collector{
		fes:   fes,
		paths: map[siteKey][]pathObservation{},
	}
}

func (c *collector) isError(name string, v *value.Value) bool {
	if c.fes.IsInfallible(name) {
		return false
	}
	sv, ok := c.fes.Get(name, v.Kind)
	if !ok {
		return false
	}
	return sv.Contains(v)
}

func (c *collector) processProgram(logPath string) error {
	f, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	d := diag.NewContext()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		d.Note(raw)

		parsed, isNewFile, err := traceline.Parse(d, raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if isNewFile {
			d.Clear()
			continue
		}
		if parsed == nil {
			d.Clear()
			continue
		}

		c.observe(parsed)
		d.Clear()
	}
	return scanner.Err()
}

func (c *collector) observe(line *traceline.Line) {
	segments := line.Segments
	if len(segments) == 0 {
		return
	}
	caller := segments[len(segments)-1]
	var callerReturn *value.Value
	if line.ExitPath {
		callerReturn = caller.Value
	}

	for i, seg := range segments {
		if seg.IsCaller {
			continue
		}
		chain := make([]pathmodel.Segment, 0, len(segments)-i)
		for _, s := range segments[i:] {
			chain = append(chain, pathmodel.Segment{
				File:     s.File,
				Function: s.Function,
				Line:     s.Line,
				Branch:   strconv.Itoa(s.Count),
				IsCaller: s.IsCaller,
			})
		}
		path := pathmodel.BuildCallPath(chain, seg.Value)

		key := siteKey{
			caller:  caller.Function + ":" + caller.File + ":" + strconv.Itoa(caller.Line),
			callee:  seg.Function,
			siteLoc: seg.File + ":" + strconv.Itoa(seg.Line),
		}
		c.paths[key] = append(c.paths[key], pathObservation{path: path, callerReturn: callerReturn})
	}
}

// wrapped reports whether this specific path's observed value was passed
// straight through by its own traced caller — check_specs.py's per-path
// value.same_assignments(path.caller.value) test, done fresh for each
// occurrence rather than read off a function-wide aggregate.
func wrapped(p *pathmodel.CallPath, callerReturn *value.Value) bool {
	if p.Return == nil || callerReturn == nil {
		return false
	}
	return p.Return.SameAssignments(callerReturn)
}

func (c *collector) siteReports() []checker.SiteReport {
	var reports []checker.SiteReport
	keys := make([]siteKey, 0, len(c.paths))
	for k := range c.paths {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].caller != keys[j].caller {
			return keys[i].caller < keys[j].caller
		}
		return keys[i].callee < keys[j].callee
	})

	for _, key := range keys {
		observations := c.paths[key]

		var dispositions []checker.PathDisposition
		for _, obs := range observations {
			p := obs.path
			if !p.IsErrorExit(func(v *value.Value) bool { return c.isError(key.callee, v) }) {
				continue
			}
			switch {
			case wrapped(p, obs.callerReturn):
				dispositions = append(dispositions, checker.Wrapped)
			case p.Return.IsUnknown():
				dispositions = append(dispositions, checker.Unchecked)
			default:
				dispositions = append(dispositions, checker.Checked)
			}
		}
		if len(dispositions) == 0 {
			continue
		}
		reports = append(reports, checker.CheckSite(key.caller, key.callee, dispositions))
	}
	return reports
}
