// Command autoepex-infer reads one or more program trace logs and infers
// an ErrorSpec for every observed C function, per spec.md §6's inference
// tool surface: `autoepex-infer <output-spec> <input-log> [...]`.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/autoepex/autoepex/internal/aggregate"
	"github.com/autoepex/autoepex/internal/debugdump"
	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/election"
	"github.com/autoepex/autoepex/internal/pathmodel"
	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/spec"
	"github.com/autoepex/autoepex/internal/traceline"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

var (
	lowRatio       = flag.Float64("low-ratio", 1.0, "ExtremeVoter threshold ratio for the threshold-vote fallback tier")
	highRatio      = flag.Float64("high-ratio", 1.0, "ExtremeVoter threshold ratio for the per-program exit vote")
	binLimit       = flag.Int("bin-limit", 6, "maximum distinct value labels before the threshold-vote tier gives up")
	percentile     = flag.Float64("percentile", 0.5, "fraction of programs that must agree before a cross-program verdict is kept")
	tooManyUnknown = flag.Bool("too-many-unknown", false, "reject a function outright when unknown observations dominate its sample (disabled by a hardcoded guard in the original; off by default here for the same reason — see spec.md §9)")
	debug          = flag.Bool("debug", false, "pretty-print each program's per-function election decisions after voting")
	dump           = flag.Bool("dump", false, "spew-dump each function's final cross-program election result")
	predictions    = flag.Bool("predictions", false, "emit Prediction: lines alongside the ErrorSpec output")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		log.Fatal("usage: autoepex-infer <output-spec> <input-log> [additional input logs ...]")
	}
	outputSpecPath, inputLogs := args[0], args[1:]

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	tuning := election.Tuning{LowRatio: *lowRatio, HighRatio: *highRatio, BinLimit: *binLimit}

	perFunction := map[string][]election.ProgramResult{}

	for _, logPath := range inputLogs {
		logger.Info().Str("program", logPath).Msg("processing trace log")
		program, err := processProgram(logPath, tuning, *tooManyUnknown)
		if err != nil {
			log.Fatalf("autoepex-infer: %s: %v", logPath, err)
		}
		if *debug {
			debugdump.Table(os.Stderr, program)
		}
		for name, decision := range program {
			perFunction[name] = append(perFunction[name], election.ProgramResult{ProgramID: logPath, Decision: decision})
		}
	}

	fes := spec.NewFullErrorSpec()
	names := make([]string, 0, len(perFunction))
	for name := range perFunction {
		names = append(names, name)
	}
	sort.Strings(names)

	var predictionLines []string
	for _, name := range names {
		final := election.InterProgramElection(perFunction[name], *percentile)
		if *dump {
			fmt.Fprintln(os.Stderr, debugdump.Sdump(final))
		}
		if !final.IsFallible {
			fes.MarkInfallible(name)
			continue
		}
		sv, err := buildSpecValue(final.Kind, final.ErrorLabels)
		if err != nil {
			log.Fatalf("autoepex-infer: %s: %v", name, err)
		}
		fes.Set(name, sv)
		if *predictions {
			for _, label := range final.ErrorLabels {
				predictionLines = append(predictionLines, fmt.Sprintf("Prediction: %s,%s,%v,%d", name, label, true, len(perFunction[name])))
			}
		}
	}

	out, err := os.Create(outputSpecPath)
	if err != nil {
		log.Fatalf("autoepex-infer: creating %s: %v", outputSpecPath, err)
	}
	defer out.Close()

	if err := fes.Write(out); err != nil {
		log.Fatalf("autoepex-infer: writing %s: %v", outputSpecPath, err)
	}
	for _, line := range predictionLines {
		fmt.Fprintln(out, line)
	}

	logger.Info().Str("output", outputSpecPath).Int("functions", len(names)).Msg("inference complete")
}

// processProgram reads one program's trace log end to end and returns its
// per-function PerProgramElection decisions. rejectTooManyUnknown gates
// FunctionCalls.TooManyUnknown, a heuristic the original disables behind a
// hardcoded "False and" guard (spec.md §9) — wired here as an opt-in flag
// rather than applied unconditionally.
func processProgram(logPath string, tuning election.Tuning, rejectTooManyUnknown bool) (map[string]election.Decision, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	agg := aggregate.New()
	d := diag.NewContext()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		d.Note(raw)

		parsed, isNewFile, err := traceline.Parse(d, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if isNewFile {
			agg.NewFile()
			d.Clear()
			continue
		}
		if parsed == nil {
			d.Clear()
			continue
		}

		observeLine(agg, parsed)
		d.Clear()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	decisions := map[string]election.Decision{}
	for name, fc := range agg.Functions() {
		if rejectTooManyUnknown && fc.TooManyUnknown(0.5) {
			decisions[name] = election.Decision{Function: name, Kind: fc.Kind, IsFallible: false}
			continue
		}
		decisions[name] = election.Elect(fc, tuning)
	}
	return decisions, nil
}

// observeLine records every callee segment in one trace line against the
// aggregator: for each callee, the trailing segment chain towards the
// caller becomes its CallPath, and — when the whole line was marked as an
// exiting path — the caller's own observed value becomes the "did the
// enclosing function return this value unmodified" signal Observe uses to
// update wrap state.
func observeLine(agg *aggregate.PerProgramAggregator, line *traceline.Line) {
	segments := line.Segments
	var callerReturn *value.Value
	if line.ExitPath && len(segments) > 0 {
		callerReturn = segments[len(segments)-1].Value
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
		agg.Observe(seg.Function, seg.Value.Kind, seg.Value, path, callerReturn)
	}
}

func buildSpecValue(kind value.Kind, labels []string) (spec.Value, error) {
	switch kind {
	case value.Bool, value.Pointer:
		label := value.UnknownLabel
		if len(labels) > 0 {
			label = labels[0]
		}
		if kind == value.Bool {
			return spec.NewBoolSpecValue(label), nil
		}
		return spec.NewPtrSpecValue(label), nil
	default:
		var nodes []*rng.Node
		for _, l := range labels {
			if l == value.UnknownLabel {
				continue
			}
			bounds := strings.SplitN(l, rng.OutRangeDelim, 2)
			if len(bounds) != 2 {
				return nil, fmt.Errorf("malformed error label %q", l)
			}
			lo, err := strconv.ParseInt(bounds[0], 10, 64)
			if err != nil {
				return nil, err
			}
			hi, err := strconv.ParseInt(bounds[1], 10, 64)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, rng.NewNode(lo, hi, weight.One))
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Least < nodes[j].Least })
		errList, err := rng.New(nodes, false, nil)
		if err != nil {
			return nil, err
		}
		return &spec.IntSpecValue{Error: errList}, nil
	}
}
