// Package valuestat implements ValueStats (spec.md §4.3): per-branch
// histograms over observed values, keyed by the label value.Value.GetKey
// produces, plus a coverage check (IntegerStat.Covers) telling whether an
// accumulated integer statistic fully accounts for a candidate range.
// Grounded on original_source/analysis/value_stats.py.
package valuestat

import (
	"sort"

	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

// Cover is the verdict covers() returns for a candidate integer range
// against an accumulated IntegerStat: whether the statistic's observed
// evidence exactly delimits the candidate, undershoots it (some part of the
// candidate was never observed), or overshoots it (the observed evidence
// extends past the candidate on at least one side).
type Cover int

const (
	CoverExact Cover = iota
	CoverUnder
	CoverOver
)

// Stat is the common ValueStats interface: accumulate observations and
// report their histogram (labels, per-label counts, total).
type Stat interface {
	Add(v *value.Value)
	Labels() []string
	Count(label string) float64
	Total() float64
}

// ToLabel returns the histogram key a given value contributes to — an
// alias for value.Value.GetKey kept as a free function to mirror the
// original's standalone to_label helper.
func ToLabel(v *value.Value) string { return v.GetKey() }

// stringStat backs both BooleanStat and PointerStat: both are a plain
// label -> weight histogram over the small fixed alphabet of compact
// letters value.Value.GetKey emits for those kinds.
type stringStat struct {
	counts map[string]weight.Weight
}

func newStringStat() stringStat {
	return stringStat{counts: map[string]weight.Weight{}}
}

func (s *stringStat) add(v *value.Value) {
	key := v.GetKey()
	if cur, ok := s.counts[key]; ok {
		s.counts[key] = cur.Add(v.Weight)
	} else {
		s.counts[key] = v.Weight
	}
}

func (s *stringStat) Labels() []string {
	labels := make([]string, 0, len(s.counts))
	for k := range s.counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

func (s *stringStat) Count(label string) float64 {
	if w, ok := s.counts[label]; ok {
		return w.Count()
	}
	return 0
}

func (s *stringStat) Total() float64 {
	var total float64
	for _, w := range s.counts {
		total += w.Count()
	}
	return total
}

// BooleanStat tallies Bool observations by compact letter (t/f/u).
type BooleanStat struct{ stringStat }

func NewBooleanStat() *BooleanStat { return &BooleanStat{newStringStat()} }

func (s *BooleanStat) Add(v *value.Value) { s.add(v) }

// PointerStat tallies Pointer observations by compact letter (m/n/u).
type PointerStat struct{ stringStat }

func NewPointerStat() *PointerStat { return &PointerStat{newStringStat()} }

func (s *PointerStat) Add(v *value.Value) { s.add(v) }

// IntegerStat tallies Integer observations as a weighted rng.List, and
// separately tracks, for every merged sub-interval, which of the original
// contributing ranges produced it (boundRanges) so Covers can tell whether
// the accumulated evidence exactly delimits a later candidate range.
type IntegerStat struct {
	rangeList   *rng.List
	boundRanges *rng.List
	unknown     weight.Weight
}

func NewIntegerStat() *IntegerStat {
	return &IntegerStat{
		rangeList:   rng.MustNew(nil, false, nil),
		boundRanges: rng.MustNew(nil, false, rng.NewBinder()),
		unknown:     weight.Scalar(0),
	}
}

func (s *IntegerStat) Add(v *value.Value) {
	if v.Range == nil {
		s.unknown = s.unknown.Add(v.Weight)
		return
	}
	s.rangeList.Add(v.Range)
	s.boundRanges.Add(v.Range.CloneBinder())
}

func (s *IntegerStat) Labels() []string {
	var labels []string
	for _, e := range s.rangeList.Entries() {
		if e.Range != nil {
			labels = append(labels, e.Range.ShortStr())
		}
	}
	if s.unknown.Count() > 0 {
		labels = append(labels, value.UnknownLabel)
	}
	return labels
}

func (s *IntegerStat) Count(label string) float64 {
	if label == value.UnknownLabel {
		return s.unknown.Count()
	}
	for _, e := range s.rangeList.Entries() {
		if e.Range != nil && e.Range.ShortStr() == label {
			return e.Value.Count()
		}
	}
	return 0
}

func (s *IntegerStat) Total() float64 {
	total := s.unknown.Count()
	for _, e := range s.rangeList.Entries() {
		if e.Range != nil {
			total += e.Value.Count()
		}
	}
	return total
}

// Covers reports how fully the accumulated evidence delimits candidate:
// CoverExact when every contributing outer range's bounds line up exactly
// with candidate's, CoverUnder when the evidence never established one of
// candidate's edges (candidate reaches past what was actually observed
// together), CoverOver when the observed evidence extends past candidate
// on at least one side.
func (s *IntegerStat) Covers(candidate *rng.Node) Cover {
	coverers := s.boundRanges.GetCoverers(candidate)
	if len(coverers) == 0 {
		return CoverUnder
	}

	exact := true
	for _, c := range coverers {
		if c == nil {
			continue
		}
		binder, ok := c.GetCount().(*rng.Binder)
		if !ok {
			continue
		}
		for _, entry := range binder.Entries() {
			switch {
			case entry.Least < candidate.Least || entry.Most > candidate.Most:
				return CoverOver
			case entry.Least > candidate.Least || entry.Most < candidate.Most:
				exact = false
			}
		}
	}
	if exact {
		return CoverExact
	}
	return CoverUnder
}

// GenNormalized returns a copy of s's range evidence with every weight
// divided by base's count, giving a relative-frequency view of it.
func (s *IntegerStat) GenNormalized(base weight.Weight) *rng.List {
	return s.rangeList.GenNormalized(base)
}
