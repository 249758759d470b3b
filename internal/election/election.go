// Package election implements the two election stages from spec.md §4.5/
// §4.6/§5: PerProgramElection, which decides per function within one
// traced program whether its return domain looks fallible and which
// histogram labels are the error branch, and InterProgramElection, which
// merges those per-program decisions into one final spec across every
// program that observed the function. Grounded on
// original_source/analysis/auto_epex_parser.py's FunctionCalls.generate_votes/
// tally_threshold/cast_vote and the inter-program summation stage
// (AutoEPExSum), adapted to the corrected ExtremeVote algorithm confirmed
// in vote.py (whole-sample stdev throughout, not a leave-one-out stdev).
package election

import (
	"sort"
	"strconv"
	"strings"

	"github.com/autoepex/autoepex/internal/aggregate"
	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/vote"
	"github.com/autoepex/autoepex/internal/weight"
)

// Tuning holds the two threshold ratios tally_threshold names: LowRatio
// feeds the threshold-vote tier's least-count and shortest-path votes,
// HighRatio feeds the exit-vote tier. BinLimit caps how many distinct
// value labels a function may have before the threshold-vote tier gives up
// and calls it infallible rather than outlier-picking among too many bins
// (auto_epex_parser.py's BIN_LIMIT).
type Tuning struct {
	LowRatio  float64
	HighRatio float64
	BinLimit  int
}

// DefaultTuning matches auto_epex_parser.py's own constants: LOW_RATIO and
// HIGH_RATIO both default to 1.0, BIN_LIMIT to 6.
var DefaultTuning = Tuning{LowRatio: 1.0, HighRatio: 1.0, BinLimit: 6}

// Decision is one function's per-program election result: whether its
// observed returns look like an error-reporting protocol at all, and if
// so, which histogram labels constitute the error branch.
type Decision struct {
	Function    string
	Kind        value.Kind
	IsFallible  bool
	ErrorLabels []string
}

// labelVote is one histogram label's evidence going into Elect's votes:
// how many times it was observed, how many of those observations ended
// the traced line in a nonzero program exit, and the path length of each
// observation (for the shortest-path fallback tier).
type labelVote struct {
	label     string
	total     int
	exitCount int
	lengths   []float64
}

// gatherLabelVotes builds one labelVote per histogram label FunctionCalls
// observed, skipping the unknown-value label — generate_votes's own
// is_undefined skip, since an unconstrained observation never names a
// candidate error branch.
func gatherLabelVotes(fc *aggregate.FunctionCalls) []labelVote {
	var votes []labelVote
	for _, label := range fc.Stat.Labels() {
		if label == value.UnknownLabel {
			continue
		}
		obs := fc.LabelObservations[label]
		lv := labelVote{label: label, total: len(obs)}
		for _, o := range obs {
			if o.ErrorExit {
				lv.exitCount++
			}
			lv.lengths = append(lv.lengths, float64(o.Path.Length()))
		}
		votes = append(votes, lv)
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].label < votes[j].label })
	return votes
}

// median follows data_utilities.py's counts_to_stats: sort ascending, take
// the middle element, averaging the two middle elements for an even count.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := n / 2
	m := sorted[mid]
	if n%2 == 0 {
		m = (m + sorted[mid-1]) / 2.0
	}
	return m
}

// Elect runs the three-tier vote FunctionCalls.cast_vote performs for one
// function's accumulated histogram (spec.md §4.5): first an exit vote
// picks out labels whose count of error-exit-ending paths stands apart
// from the rest; if that yields no winner, a threshold vote falls back to
// the label with the fewest non-exit followers, then (if that also fails)
// the label with the shortest median path length; and if the histogram
// has grown past BinLimit distinct labels, the threshold tier is skipped
// entirely and the function is called infallible rather than guessed at.
// A function whose both tiers fail to pick a winner is infallible, the
// same disposition cast_vote gives an outright bin overflow — the original
// doesn't distinguish the two outcomes at the call site either.
func Elect(fc *aggregate.FunctionCalls, tuning Tuning) Decision {
	allowTie := fc.Kind == value.Integer
	labelVotes := gatherLabelVotes(fc)
	infallible := Decision{Function: fc.Name, Kind: fc.Kind, IsFallible: false}

	var exitTallies []vote.Tally
	for _, lv := range labelVotes {
		if lv.exitCount > 0 {
			exitTallies = append(exitTallies, vote.Tally{Key: lv.label, Count: float64(lv.exitCount)})
		}
	}
	if winners := vote.ExtremeVoter(exitTallies, tuning.HighRatio, 1, allowTie, allowTie); winners != nil {
		return Decision{Function: fc.Name, Kind: fc.Kind, IsFallible: true, ErrorLabels: winners}
	}

	if len(labelVotes) > tuning.BinLimit {
		return infallible
	}

	var leastCountTallies []vote.Tally
	for _, lv := range labelVotes {
		nonExit := lv.total - lv.exitCount
		if nonExit > 0 {
			leastCountTallies = append(leastCountTallies, vote.Tally{Key: lv.label, Count: -float64(nonExit)})
		}
	}
	if winners := vote.ExtremeVoter(leastCountTallies, tuning.LowRatio, 2, allowTie, allowTie); winners != nil {
		return Decision{Function: fc.Name, Kind: fc.Kind, IsFallible: true, ErrorLabels: winners}
	}

	var shortestTallies []vote.Tally
	for _, lv := range labelVotes {
		shortestTallies = append(shortestTallies, vote.Tally{Key: lv.label, Count: -median(lv.lengths)})
	}
	if winners := vote.ExtremeVoter(shortestTallies, tuning.LowRatio, 2, allowTie, allowTie); winners != nil {
		return Decision{Function: fc.Name, Kind: fc.Kind, IsFallible: true, ErrorLabels: winners}
	}

	return infallible
}

// ProgramResult pairs one program's election decision for a function with
// that program's identity, for InterProgramElection's bookkeeping.
type ProgramResult struct {
	ProgramID string
	Decision  Decision
}

// FinalSpec is one function's spec after merging every program's
// decisions.
type FinalSpec struct {
	Function    string
	Kind        value.Kind
	IsFallible  bool
	ErrorLabels []string
}

// InterProgramElection merges per-program decisions for one function
// (spec.md §5): a function is finally fallible if at least percentile of
// the programs that observed it agreed it was fallible, and a label is
// kept in the final error set if it appeared in at least percentile of
// those fallible votes. Integer labels are then smoothed (spec.md §4.1's
// GenerateSmooth) so adjacent or touching ranges elected independently
// merge into one contiguous range rather than staying artificially split.
func InterProgramElection(results []ProgramResult, percentile float64) FinalSpec {
	if len(results) == 0 {
		return FinalSpec{}
	}

	fallibleCount := 0
	labelCounts := map[string]int{}
	for _, r := range results {
		if r.Decision.IsFallible {
			fallibleCount++
			for _, l := range r.Decision.ErrorLabels {
				labelCounts[l]++
			}
		}
	}

	total := len(results)
	isFallible := fallibleCount > 0 && float64(fallibleCount)/float64(total) >= percentile

	spec := FinalSpec{Function: results[0].Decision.Function, Kind: results[0].Decision.Kind, IsFallible: isFallible}
	if !isFallible {
		return spec
	}

	var labels []string
	for l, c := range labelCounts {
		if float64(c)/float64(fallibleCount) >= percentile {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	spec.ErrorLabels = smoothenLabels(labels)
	return spec
}

// smoothenLabels re-parses range-shaped labels ("lo_hi") and merges any
// that touch, leaving non-range labels (bool/pointer letters, "u")
// untouched.
func smoothenLabels(labels []string) []string {
	var nodes []*rng.Node
	var other []string
	for _, l := range labels {
		if node, ok := parseRangeLabel(l); ok {
			nodes = append(nodes, node)
		} else {
			other = append(other, l)
		}
	}
	if len(nodes) == 0 {
		return other
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Least < nodes[j].Least })
	smoothed := rng.Smoothen(rng.MustNew(nodes, false, nil))
	result := append([]string{}, other...)
	for _, n := range smoothed.Ranges {
		result = append(result, n.ShortStr())
	}
	sort.Strings(result)
	return result
}

func parseRangeLabel(label string) (*rng.Node, bool) {
	if label == value.UnknownLabel || label == "" {
		return nil, false
	}
	bounds := strings.SplitN(label, rng.OutRangeDelim, 2)
	if len(bounds) != 2 {
		return nil, false
	}
	lo, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil {
		return nil, false
	}
	hi, err := strconv.ParseInt(bounds[1], 10, 64)
	if err != nil {
		return nil, false
	}
	return rng.NewNode(lo, hi, weight.One), true
}
