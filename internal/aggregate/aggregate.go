// Package aggregate implements PerProgramAggregator (spec.md §4.3):
// accumulating, for one traced program, every function's observed return
// values into a ValueStat, tracking per call site whether the result looks
// wrapped by its caller, and grouping the committed call paths by call
// site. Grounded on
// original_source/analysis/auto_epex_parser.py's FunctionCalls/
// AutoEPExParser family.
package aggregate

import (
	"github.com/autoepex/autoepex/internal/pathmodel"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/valuestat"
)

// LabelObservation is one committed path observed under a given histogram
// label, carrying the signal PerProgramElection's exit vote needs:
// whether the whole traced line ended because the program exited with a
// nonzero status (auto_epex_parser.py's CallPath.is_error_exit).
type LabelObservation struct {
	Path      *pathmodel.CallPath
	ErrorExit bool
}

// FunctionCalls accumulates, for one function name within one program, the
// observed return-value histogram (for spec inference), the per-label path
// observations PerProgramElection's votes need, and its committed paths
// grouped by call site (SitePaths).
type FunctionCalls struct {
	Name              string
	Kind              value.Kind
	Stat              valuestat.Stat
	SitePaths         map[string][]*pathmodel.CallPath
	LabelObservations map[string][]LabelObservation

	totalCount   int
	unknownCount int
}

func newFunctionCalls(name string, kind value.Kind) *FunctionCalls {
	var stat valuestat.Stat
	switch kind {
	case value.Bool:
		stat = valuestat.NewBooleanStat()
	case value.Pointer:
		stat = valuestat.NewPointerStat()
	default:
		stat = valuestat.NewIntegerStat()
	}
	return &FunctionCalls{
		Name:              name,
		Kind:              kind,
		Stat:              stat,
		SitePaths:         map[string][]*pathmodel.CallPath{},
		LabelObservations: map[string][]LabelObservation{},
	}
}

func (f *FunctionCalls) add(v *value.Value, path *pathmodel.CallPath, errorExit bool) {
	f.Stat.Add(v)
	f.totalCount++
	if v.IsUnknown() {
		f.unknownCount++
	}
	if path == nil {
		return
	}
	key := path.CallSiteKey()
	f.SitePaths[key] = append(f.SitePaths[key], path)
	label := valuestat.ToLabel(v)
	f.LabelObservations[label] = append(f.LabelObservations[label], LabelObservation{Path: path, ErrorExit: errorExit})
}

// TooManyUnknown reports whether unknown observations make up more than
// ratio of this function's sample (true when nothing was observed).
// generate_votes guards this same check behind a hardcoded "False and" in
// the original, i.e. it's a dead heuristic there. Here it is opt-in:
// autoepex-infer calls it only under its -too-many-unknown flag, and
// records a function it flags as infallible.
func (f *FunctionCalls) TooManyUnknown(ratio float64) bool {
	if f.totalCount == 0 {
		return true
	}
	return float64(f.unknownCount)/float64(f.totalCount) > ratio
}

func (f *FunctionCalls) Total() int   { return f.totalCount }
func (f *FunctionCalls) Unknown() int { return f.unknownCount }

// pendingObservation is one call observation not yet committed to its
// FunctionCalls record, held back because it still looks like its result
// might be a wrapped pass-through of the enclosing caller's own return.
type pendingObservation struct {
	name      string
	kind      value.Kind
	v         *value.Value
	path      *pathmodel.CallPath
	errorExit bool
}

// PerProgramAggregator accumulates every function observed in one traced
// program's log. "NEW FILE" markers in the trace (one per translation unit)
// reset only the wrap tracking described below; function records and their
// histograms carry over from file to file.
//
// Wrap tracking is scoped per call site (not per function name), mirroring
// AutoEPExParser.handle_callee/add_unwrapped: a call site starts out
// "maybe wrapped" and any observation there whose callee value carries the
// same symbol as its enclosing caller's own return is buffered rather than
// committed, since it looks like the caller is passing the value straight
// through. The moment one observation at a site doesn't match (the value
// genuinely isn't the same assignment, or the caller's return wasn't in
// the trace at all), that site is marked not_wrapped for the rest of the
// current file: every buffered observation at the site is flushed in, and
// every future observation there — even ones that individually look
// wrapped again — commits immediately. A site never reverts from
// not_wrapped back to maybe-wrapped.
type PerProgramAggregator struct {
	functions    map[string]*FunctionCalls
	notWrapped   map[string]bool
	maybeWrapped map[string][]pendingObservation
}

func New() *PerProgramAggregator {
	return &PerProgramAggregator{
		functions:    map[string]*FunctionCalls{},
		notWrapped:   map[string]bool{},
		maybeWrapped: map[string][]pendingObservation{},
	}
}

// NewFile resets the per-file wrap tracking at a "NEW FILE" trace boundary;
// function records are kept.
func (a *PerProgramAggregator) NewFile() {
	a.notWrapped = map[string]bool{}
	a.maybeWrapped = map[string][]pendingObservation{}
}

func (a *PerProgramAggregator) functionRecord(name string, kind value.Kind) *FunctionCalls {
	fc, ok := a.functions[name]
	if !ok {
		fc = newFunctionCalls(name, kind)
		a.functions[name] = fc
	}
	return fc
}

// Observe records one call's return value against its function, deferring
// the commit when the value looks like an unconfirmed wrapped pass-through
// of callerReturn — the enclosing caller's own observed return, when the
// whole traced line ended in a program exit. errorExit (the exit-vote's
// signal, distinct from the checker's own per-path error classification)
// is true when that exit status was itself nonzero.
func (a *PerProgramAggregator) Observe(name string, kind value.Kind, v *value.Value, path *pathmodel.CallPath, callerReturn *value.Value) {
	errorExit := callerReturn != nil && !callerReturn.IsExactly(0)
	obs := pendingObservation{name: name, kind: kind, v: v, path: path, errorExit: errorExit}

	if path == nil {
		a.commit(obs)
		return
	}

	siteKey := path.CallSiteKey()
	if a.notWrapped[siteKey] {
		a.commit(obs)
		return
	}
	if callerReturn == nil || !v.SameAssignments(callerReturn) {
		a.notWrapped[siteKey] = true
		a.flush(siteKey)
		a.commit(obs)
		return
	}
	a.maybeWrapped[siteKey] = append(a.maybeWrapped[siteKey], obs)
}

// flush commits every observation buffered at siteKey, once that site is
// confirmed not wrapped.
func (a *PerProgramAggregator) flush(siteKey string) {
	pending := a.maybeWrapped[siteKey]
	delete(a.maybeWrapped, siteKey)
	for _, obs := range pending {
		a.commit(obs)
	}
}

func (a *PerProgramAggregator) commit(obs pendingObservation) {
	fc := a.functionRecord(obs.name, obs.kind)
	fc.add(obs.v, obs.path, obs.errorExit)
}

func (a *PerProgramAggregator) Functions() map[string]*FunctionCalls { return a.functions }
