// Package checker implements SpecChecker (spec.md §4.8): given per-site
// path dispositions (which autoepex-check derives from an elected ErrorSpec
// and its own per-site path lists), decide which call sites use a fallible function's result without checking it,
// suppress a function's unchecked-bug reports when leaving it unchecked is
// that function's own convention rather than a real bug pattern, and emit
// a report grouped by caller. Grounded on
// original_source/analysis/check_specs.py's CallerReport/SiteReport/
// BugsChecker (the file's separate, apparently-unused ErrorSpecParser/
// auto_epex_parser.ErrorSpec path is not ported — see DESIGN.md).
package checker

import (
	"sort"

	"github.com/autoepex/autoepex/internal/vote"
)

// PathDisposition is how one observed path, that reached a fallible call
// and whose result was an error-exit per the elected spec, went on to use
// that value: propagated to its own caller (Wrapped), tested against the
// error spec before use (Checked), or used with no check at all
// (Unchecked).
type PathDisposition int

const (
	Wrapped PathDisposition = iota
	Checked
	Unchecked
)

// suppressRatio/minSites mirror check_specs.py's own suppression vote
// (threshold_ratio=1.0, min_sites=2): a function is judged "conventionally
// unchecked" — its unchecked sites suppressed entirely — only once at
// least minSites of its sites are unchecked and that count dominates the
// sites that do check or wrap the result. With fewer than minSites
// unchecked sites the vote can never assert that dominance, so those
// sites stay isolated anomalies and are reported.
const (
	suppressRatio = 1.0
	minSites      = 2
)

// SiteReport is one call site's disposition summary across every traced
// path that reached it with an error-exit result.
type SiteReport struct {
	Caller   string // the caller, as autoepex-check keys it: function:file:line
	Function string // the callee being called

	AlwaysWrapped    bool
	SometimesWrapped bool
	AlwaysUnchecked  bool
	UncheckedCount   int
	TotalCount       int
}

// CallerReport groups every flagged site within one caller function.
type CallerReport struct {
	Caller string
	Sites  []SiteReport
}

// CheckSite reduces one call site's per-path dispositions to a SiteReport.
func CheckSite(caller, function string, dispositions []PathDisposition) SiteReport {
	report := SiteReport{Caller: caller, Function: function, AlwaysWrapped: true, AlwaysUnchecked: true}
	for _, d := range dispositions {
		report.TotalCount++
		switch d {
		case Wrapped:
			report.SometimesWrapped = true
			report.AlwaysUnchecked = false
		case Checked:
			report.AlwaysWrapped = false
			report.AlwaysUnchecked = false
		case Unchecked:
			report.AlwaysWrapped = false
			report.UncheckedCount++
		}
	}
	if report.TotalCount == 0 {
		report.AlwaysWrapped = false
		report.AlwaysUnchecked = false
	}
	return report
}

// BugsChecker holds no state of its own; Check is a pure reduction over the
// site reports a caller assembles from CheckSite.
type BugsChecker struct{}

func NewBugsChecker() *BugsChecker { return &BugsChecker{} }

// Check applies the per-function suppression vote and returns the
// surviving caller reports sorted by caller (and by callee within each),
// plus the total number of flagged sites — check_specs.py's "Total: N".
// try_report casts one true/false vote per *site* (not per path), and
// reports the function's unchecked sites iff the resulting vote is NOT a
// suppression — check_specs.py:274's "report iff not reject".
func (c *BugsChecker) Check(sites []SiteReport) ([]CallerReport, int) {
	byFunction := map[string][]SiteReport{}
	for _, s := range sites {
		if s.AlwaysWrapped || s.TotalCount == 0 {
			continue
		}
		byFunction[s.Function] = append(byFunction[s.Function], s)
	}

	var flagged []SiteReport
	for _, group := range byFunction {
		var uncheckedSites, checkedSites int
		for _, s := range group {
			if s.AlwaysUnchecked {
				uncheckedSites++
			} else {
				checkedSites++
			}
		}
		if vote.PolarVoter(uncheckedSites, checkedSites, suppressRatio, minSites) {
			continue
		}
		for _, s := range group {
			if s.AlwaysUnchecked {
				flagged = append(flagged, s)
			}
		}
	}

	byCaller := map[string][]SiteReport{}
	for _, s := range flagged {
		byCaller[s.Caller] = append(byCaller[s.Caller], s)
	}

	callers := make([]string, 0, len(byCaller))
	for caller := range byCaller {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	reports := make([]CallerReport, 0, len(callers))
	for _, caller := range callers {
		group := byCaller[caller]
		sort.Slice(group, func(i, j int) bool { return group[i].Function < group[j].Function })
		reports = append(reports, CallerReport{Caller: caller, Sites: group})
	}
	return reports, len(flagged)
}
