// Package pathmodel implements PathModel (spec.md §4.4): turning the raw,
// possibly loop-repeating sequence of call-site/branch observations a trace
// records for one call into a normalized CallPath suitable for grouping and
// voting on. Grounded on original_source/analysis/auto_epex_parser.py's
// PreBasicPathSegment/BasicPathSegment/CalleePathSegment/CallerPathSegment/
// FollowerEdge/PreCallPath/CallPath family.
package pathmodel

import (
	"strconv"
	"strings"

	"github.com/autoepex/autoepex/internal/value"
)

// Segment is one step observed along a call's execution path: either inside
// the callee function (a branch taken) or the call site itself as seen from
// the caller. The five segment classes in the original (PreBasicPathSegment,
// BasicPathSegment, CalleePathSegment, PreCallerSegment, CallerPathSegment)
// all reduce to the same (file, function, line, branch) identity plus the
// caller/callee distinction; this collapses them into one comparable value.
type Segment struct {
	File     string
	Function string
	Line     int
	Branch   string
	IsCaller bool
}

// GeneralLocation is the coarse identity PreCallerSegment groups by: file
// and enclosing function, ignoring line/branch.
func (s Segment) GeneralLocation() string {
	return s.File + ":" + s.Function
}

func (s Segment) key() string {
	return s.File + ":" + s.Function + ":" + strconv.Itoa(s.Line) + ":" + s.Branch
}

// SameSegment is the loop-collapse equality test PreCallPath uses to decide
// whether two consecutive observations are the same control-flow point
// repeating (a loop iteration) rather than genuinely distinct steps.
func (a Segment) SameSegment(b Segment) bool {
	return a.key() == b.key()
}

// FollowerEdge counts how many consecutive times a segment repeated — a
// collapsed loop body — before the path moved on. Comparisons are by Count,
// mirroring the original's __gt__/__ge__/__lt__/__le__/__int__ overloads.
type FollowerEdge struct {
	Segment Segment
	Count   int
}

func (f FollowerEdge) GreaterThan(o FollowerEdge) bool      { return f.Count > o.Count }
func (f FollowerEdge) GreaterOrEqual(o FollowerEdge) bool   { return f.Count >= o.Count }
func (f FollowerEdge) LessThan(o FollowerEdge) bool         { return f.Count < o.Count }
func (f FollowerEdge) LessOrEqual(o FollowerEdge) bool      { return f.Count <= o.Count }

// CallPath is one fully observed execution of a function call: the
// collapsed sequence of segments from entry to the call's observed return,
// plus the value that return carried.
type CallPath struct {
	Edges      []FollowerEdge
	ReturnedAt Segment
	Return     *value.Value
}

// BuildCallPath collapses a raw, possibly loop-repeating segment sequence
// (as read off a trace path string) into a CallPath: PreCallPath's
// same_segment-driven run-length collapse, reversed into forward order to
// match how CallPath reconstructs it from the original's reverse walk.
func BuildCallPath(raw []Segment, ret *value.Value) *CallPath {
	var edges []FollowerEdge
	for _, seg := range raw {
		if n := len(edges); n > 0 && edges[n-1].Segment.SameSegment(seg) {
			edges[n-1].Count++
			continue
		}
		edges = append(edges, FollowerEdge{Segment: seg, Count: 1})
	}
	path := &CallPath{Edges: edges, Return: ret}
	if len(raw) > 0 {
		path.ReturnedAt = raw[len(raw)-1]
	}
	return path
}

// Length is the path's total step count, loop iterations included —
// CallPath.length in the original. PerProgramElection's shortest-path tier
// votes on the median of it.
func (p *CallPath) Length() int {
	total := 0
	for _, e := range p.Edges {
		total += e.Count
	}
	return total
}

// IsErrorExit reports whether this path's returned value falls inside the
// candidate error spec isError names. autoepex-check uses it to pick out
// the error-return paths at each call site; PerProgramAggregator does not
// call it.
func (p *CallPath) IsErrorExit(isError func(*value.Value) bool) bool {
	if p.Return == nil {
		return false
	}
	return isError(p.Return)
}

// GetKey normalizes a path to a grouping key: the ordered sequence of
// segment identities, loop-iteration counts stripped out, so that two
// traces differing only in how many times a loop ran are grouped as the
// "same" path shape — PreCallPath.get_key in the original.
func (p *CallPath) GetKey() string {
	parts := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		parts[i] = e.Segment.key()
	}
	return strings.Join(parts, "|")
}

// CallSiteKey identifies the call site a path starts at, for grouping
// paths by call_site_to_key in the original: the first callee segment's
// function and call location ("func file:line"), or "" if the path has no
// callee segment.
func (p *CallPath) CallSiteKey() string {
	for _, e := range p.Edges {
		if !e.Segment.IsCaller {
			return e.Segment.Function + " " + e.Segment.File + ":" + strconv.Itoa(e.Segment.Line)
		}
	}
	return ""
}
