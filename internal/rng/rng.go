// Package rng implements the discrete integer-interval algebra described in
// spec.md §4.1 (RangeAlgebra): disjoint weighted integer intervals with a
// catch-all "rest" bucket for observations whose integer value is
// unconstrained. It is a direct port of original_source/analysis/ranges.py,
// generalized so the "count" attached to a range can be any weight.Weight
// (a plain scalar observation count, or an opaque contributor list) per
// design note §9.
package rng

import (
	"fmt"
	"sort"
	"strings"

	"github.com/autoepex/autoepex/internal/weight"
)

// OutRangeDelim and OutRangesDelim match the wire format from spec.md §6:
// a range is "lo_hi", and multiple ranges are joined with ",".
const (
	OutRangeDelim  = "_"
	OutRangesDelim = ","
)

// Node is a closed interval [Least, Most] with a Count. Invariant: Least <=
// Most. A node with Children is a partition of the interval produced by
// merging overlapping ranges; a node is "flat" when Children is nil.
type Node struct {
	Least, Most int64
	Count       weight.Weight
	Children    []*Node

	flat []*Node // memoized Flatten() result, valid only when Children != nil
}

// NewNode builds a flat node for the closed interval [least, most].
func NewNode(least, most int64, count weight.Weight) *Node {
	return &Node{Least: least, Most: most, Count: count}
}

// NewPoint builds a flat single-value node [v, v].
func NewPoint(v int64, count weight.Weight) *Node {
	return NewNode(v, v, count)
}

func (n *Node) GetCount() weight.Weight { return n.Count }

// Overlaps reports whether the two closed intervals intersect.
func (n *Node) Overlaps(o *Node) bool {
	return n.Least <= o.Most && n.Most >= o.Least
}

// Contains reports whether n's interval fully covers o's.
func (n *Node) Contains(o *Node) bool {
	return n.Least <= o.Least && o.Most <= n.Most
}

func (n *Node) createShrinked(least, most int64) *Node {
	newLeast := n.Least
	if least > n.Least {
		newLeast = least
	}
	newMost := n.Most
	if most < n.Most {
		newMost = most
	}
	return NewNode(newLeast, newMost, n.GetCount())
}

// CreateShrinked clips n to fit within toFit's bounds, keeping n's count.
func (n *Node) CreateShrinked(toFit *Node) *Node {
	return n.createShrinked(toFit.Least, toFit.Most)
}

// CutAbove returns the part of n below cutter's start, or nil if none.
func (n *Node) CutAbove(cutter *Node) *Node {
	cut := cutter.Least - 1
	newMost := n.Most
	if cut < newMost {
		newMost = cut
	}
	if n.Least > newMost {
		return nil
	}
	return NewNode(n.Least, newMost, n.GetCount())
}

// CutBelow returns the part of n above cutter's end, or nil if none.
func (n *Node) CutBelow(cutter *Node) *Node {
	cut := cutter.Most + 1
	newLeast := n.Least
	if cut > newLeast {
		newLeast = cut
	}
	if newLeast > n.Most {
		return nil
	}
	return NewNode(newLeast, n.Most, n.GetCount())
}

// CutBetween returns the part of n strictly between two cutters, or nil.
func (n *Node) CutBetween(lowCutter, highCutter *Node) *Node {
	lowest := lowCutter.Most + 1
	highest := highCutter.Least - 1
	if lowest > highest {
		return nil
	}
	return n.createShrinked(lowest, highest)
}

// Clone deep-copies n, including its children.
func (n *Node) Clone() *Node {
	clone := NewNode(n.Least, n.Most, n.Count)
	if n.Children != nil {
		clone.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return clone
}

// CloneTop returns a flat node over n's interval with a replacement count.
func (n *Node) CloneTop(newCount weight.Weight) *Node {
	return NewNode(n.Least, n.Most, newCount)
}

// Flatten returns the leaf nodes of n, memoized once n has children.
func (n *Node) Flatten() []*Node {
	if n.Children == nil {
		return []*Node{n.Clone()}
	}
	if n.flat == nil {
		for _, c := range n.Children {
			n.flat = append(n.flat, c.Flatten()...)
		}
	}
	return n.flat
}

// add merges new into n in place, splitting n into children as needed.
func (n *Node) add(new *Node) {
	if new == nil {
		return
	}
	shrunk := new.CreateShrinked(n)
	if shrunk.Least <= shrunk.Most {
		n.addExact(shrunk)
	}
}

func (n *Node) addExact(new *Node) {
	combo := n.Count.Add(new.Count)
	if n.Children == nil {
		switch {
		case n.Least < new.Least:
			oldLess := n.CutAbove(new)
			newCombo := NewNode(new.Least, new.Most, combo)
			if n.Most > new.Most {
				n.Children = []*Node{oldLess, newCombo, n.CutBelow(new)}
			} else {
				n.Children = []*Node{oldLess, newCombo}
			}
		case n.Most > new.Most:
			newCombo := NewNode(new.Least, new.Most, combo)
			oldMore := n.CutBelow(new)
			n.Children = []*Node{newCombo, oldMore}
		default:
			n.Count = combo
		}
		return
	}
	n.flat = nil
	for _, child := range n.Children {
		if child.Overlaps(new) {
			child.add(new.CreateShrinked(child))
		}
	}
}

// Increment adds addition to every leaf count under n (or to n itself if flat).
func (n *Node) Increment(addition weight.Weight) {
	if n.Children == nil {
		n.Count = n.Count.Add(addition)
		return
	}
	for _, c := range n.Children {
		c.Increment(addition)
	}
}

func (n *Node) ShortStr() string {
	return fmt.Sprintf("%d%s%d", n.Least, OutRangeDelim, n.Most)
}

func (n *Node) String() string {
	if n.Children == nil {
		return fmt.Sprintf("%d%s%d(%v)", n.Least, OutRangeDelim, n.Most, n.Count)
	}
	strs := make([]string, len(n.Children))
	for i, c := range n.Children {
		strs[i] = c.String()
	}
	return strings.Join(strs, OutRangesDelim)
}

// CoverRange is a plain (least, most) pair used as a marker of the outer
// interval that originally contributed to a merged sub-range.
type CoverRange struct {
	Least, Most int64
}

func (c CoverRange) ShortStr() string {
	return fmt.Sprintf("%d%s%d", c.Least, OutRangeDelim, c.Most)
}

// Binder is the set-valued shadow count described in spec.md §4.1: for each
// contributing original range it keeps the outer covering range as a
// marker, so later lookups can tell whether an observed span exceeds a
// spec's range or the spec misses a sub-range. It implements weight.Weight
// so the normal Node/List add machinery can combine binders by set union.
type Binder struct {
	ranges map[CoverRange]struct{}
}

// NewBinder returns an empty Binder.
func NewBinder() *Binder {
	return &Binder{ranges: map[CoverRange]struct{}{}}
}

// Append records node's interval as a contributing outer range.
func (b *Binder) Append(n *Node) {
	b.ranges[CoverRange{n.Least, n.Most}] = struct{}{}
}

func (b *Binder) Add(o weight.Weight) weight.Weight {
	other, ok := o.(*Binder)
	union := NewBinder()
	for cr := range b.ranges {
		union.ranges[cr] = struct{}{}
	}
	if ok {
		for cr := range other.ranges {
			union.ranges[cr] = struct{}{}
		}
	}
	return union
}

func (b *Binder) Count() float64 { return float64(len(b.ranges)) }
func (b *Binder) IsZero() bool   { return len(b.ranges) == 0 }

// Entries returns the contributing cover ranges sorted by Least, then Most.
func (b *Binder) Entries() []CoverRange {
	out := make([]CoverRange, 0, len(b.ranges))
	for cr := range b.ranges {
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Least != out[j].Least {
			return out[i].Least < out[j].Least
		}
		return out[i].Most < out[j].Most
	})
	return out
}

func zeroRest(asList bool) weight.Weight {
	if asList {
		return weight.List{}
	}
	return weight.Scalar(0)
}

// List is an ordered sequence of disjoint flat Nodes plus a "rest" counter,
// the Go counterpart of ranges.py's RangeList.
type List struct {
	Ranges      []*Node
	AsList      bool
	Rest        weight.Weight
	needFlatten bool
}

// New validates and builds a List from nodes, cloning and flattening each.
// It returns an error (rather than panicking) because in this system the
// only place out-of-order or overlapping ranges can originate is parsing
// attacker/checker-controlled input text — an input-format violation per
// spec.md §7, which callers should surface with diag.Context.Fatal.
func New(nodes []*Node, asList bool, rest weight.Weight) (*List, error) {
	l := &List{AsList: asList}
	if err := l.setRanges(nodes, true); err != nil {
		return nil, err
	}
	if rest == nil {
		rest = zeroRest(asList)
	}
	l.Rest = rest
	return l, nil
}

// MustNew is New, for call sites where the node list is already known (by
// construction) to be sorted and disjoint — an error here is a bug in this
// package, not malformed input.
func MustNew(nodes []*Node, asList bool, rest weight.Weight) *List {
	l, err := New(nodes, asList, rest)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *List) setRanges(nodes []*Node, clone bool) error {
	newRanges := make([]*Node, 0, len(nodes))
	for _, member := range nodes {
		if len(newRanges) > 0 {
			last := newRanges[len(newRanges)-1]
			if member.Least <= last.Most {
				return fmt.Errorf("rng: overlapping or out-of-order ranges, %s and %s", last, member)
			}
		}
		use := member
		if clone {
			use = member.Clone()
		}
		newRanges = append(newRanges, use.Flatten()...)
	}
	l.Ranges = newRanges
	l.needFlatten = false
	return nil
}

// Flatten re-derives l.Ranges from any nodes that gained children via Add,
// idempotently.
func (l *List) Flatten() {
	if !l.needFlatten {
		return
	}
	if err := l.setRanges(l.Ranges, false); err != nil {
		panic(err) // internal invariant violation, not malformed input
	}
}

// CloneFlat clones l, optionally switching list-mode. asList == nil keeps
// l's current mode.
func (l *List) CloneFlat(asList *bool) *List {
	a := l.AsList
	if asList != nil {
		a = *asList
	}
	clone := MustNew(l.Ranges, a, nil)
	if a == l.AsList {
		clone.Rest = clone.Rest.Add(l.Rest)
	}
	return clone
}

// CloneTop returns a flat-count clone: every node keeps its interval but
// gets the given count, and rest is reset to zero.
func (l *List) CloneTop(value weight.Weight, asList *bool) *List {
	a := l.AsList
	if asList != nil {
		a = *asList
	}
	out := &List{AsList: a}
	for _, r := range l.Ranges {
		out.Ranges = append(out.Ranges, r.CloneTop(value))
	}
	out.Rest = zeroRest(a)
	return out
}

// CloneNewValue replaces every node's count (and, if l has rest, the rest
// value too) with value.
func (l *List) CloneNewValue(value weight.Weight, asList *bool) *List {
	a := l.AsList
	if asList != nil {
		a = *asList
	}
	clone := MustNew(l.Ranges, a, nil)
	if l.HasRest() {
		clone.Rest = value
	}
	for _, r := range clone.Ranges {
		r.Count = value
	}
	return clone
}

// CloneBinder returns a flat clone whose every node shares one Binder as its
// count, and that Binder already contains a CoverRange marker per node.
func (l *List) CloneBinder() *List {
	binder := NewBinder()
	clone := l.CloneTop(binder, boolPtr(false))
	for _, r := range clone.Ranges {
		binder.Append(r)
	}
	return clone
}

func boolPtr(b bool) *bool { return &b }

// GenNormalized divides every count (and rest) by base's Count().
func (l *List) GenNormalized(base weight.Weight) *List {
	baseNumber := base.Count()
	normalized := l.CloneFlat(boolPtr(false))
	normalized.Rest = weight.Scalar(l.Rest.Count() / baseNumber)
	for _, r := range normalized.Ranges {
		r.Count = weight.Scalar(r.Count.Count() / baseNumber)
	}
	return normalized
}

// searchLeast returns the first index in [first, len(Ranges)-1] whose Most
// is >= least, or len(Ranges) if no such range (or a larger window) exists.
func (l *List) searchLeast(least int64, first int) int {
	last := len(l.Ranges) - 1
	if len(l.Ranges) == 0 || least > l.Ranges[last].Most {
		return last + 1
	}
	lo, hi := first, last
	for lo < hi {
		mid := (lo + hi) / 2
		if l.Ranges[mid].Most >= least {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// searchMost returns the last index in [first, len(Ranges)-1] whose Least
// is <= most, or first-1 if none.
func (l *List) searchMost(most int64, first int) int {
	last := len(l.Ranges) - 1
	if len(l.Ranges) == 0 || most < l.Ranges[first].Least {
		return first - 1
	}
	lo, hi := first, last
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.Ranges[mid].Least <= most {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// addOne splices newRange into l starting the search at index start, and
// returns the index at which it landed (for the caller to resume from, when
// adding several ranges from another list in order).
func (l *List) addOne(newRange *Node, start int) int {
	addFirst := l.searchLeast(newRange.Least, start)
	addLast := l.searchMost(newRange.Most, start)

	var out []*Node
	out = append(out, l.Ranges[:addFirst]...)

	if addFirst < len(l.Ranges) {
		first := l.Ranges[addFirst]
		if first.Overlaps(newRange) {
			if preCut := newRange.CutAbove(first); preCut != nil {
				out = append(out, preCut)
			}
			first.add(newRange)
			out = append(out, first)
		} else {
			out = append(out, newRange, first)
		}
	} else {
		out = append(out, newRange)
	}

	for i := addFirst; i < addLast; i++ {
		current := l.Ranges[i]
		next := l.Ranges[i+1]
		if between := newRange.CutBetween(current, next); between != nil {
			out = append(out, between)
		}
		if i < addLast-1 {
			next.add(newRange)
			out = append(out, next)
		}
	}

	if addLast >= 0 {
		last := l.Ranges[addLast]
		if last.Overlaps(newRange) {
			postCut := newRange.CutBelow(last)
			if addLast > addFirst {
				last.add(newRange)
				out = append(out, last)
			}
			if postCut != nil {
				out = append(out, postCut)
			}
		}
	}

	if addLast == addFirst-1 {
		addLast = addFirst
	}
	if addLast+1 < len(l.Ranges) {
		out = append(out, l.Ranges[addLast+1:]...)
	}

	l.Ranges = out
	l.needFlatten = true
	return addFirst
}

// Add unions other into l, matching RangeList.add's quirks exactly
// (including that other's rest is folded in only when other contributes no
// ranges or l has no ranges yet; when both have ranges, other's rest is
// dropped — see original_source).
func (l *List) Add(other *List) *List {
	if len(other.Ranges) == 0 && other.HasRest() {
		l.Increment(other.Rest)
		return l
	}
	if len(l.Ranges) == 0 {
		tempClone := other.CloneFlat(nil)
		l.Ranges = tempClone.Ranges
		l.Increment(l.Rest)
		if other.HasRest() {
			l.Increment(other.Rest)
		}
		return l
	}
	start := 0
	for _, newRange := range other.Ranges {
		start = l.addOne(newRange, start)
	}
	return l
}

// Increment adds to the rest counter only (it does not touch l.Ranges) —
// matching RangeList.increment in the original, which is distinct from
// Node.Increment.
func (l *List) Increment(toAdd weight.Weight) {
	l.Rest = l.Rest.Add(toAdd)
}

func (l *List) HasRest() bool {
	return l.Rest.Count() > 0
}

func (l *List) String() string {
	l.Flatten()
	strs := make([]string, len(l.Ranges))
	for i, r := range l.Ranges {
		strs[i] = r.String()
	}
	return fmt.Sprintf("Unspecified: %v\n%s", l.Rest, strings.Join(strs, OutRangesDelim))
}

// ShortStr renders the wire-format representation from spec.md §6.
func (l *List) ShortStr() string {
	strs := make([]string, len(l.Ranges))
	for i, n := range l.Ranges {
		strs[i] = n.ShortStr()
	}
	joined := strings.Join(strs, OutRangesDelim)
	if l.HasRest() {
		return fmt.Sprintf("Unspecified: %v %s", l.Rest, joined)
	}
	return joined
}

// Contains reports whether some node in l fully covers node (nil means:
// does l have any rest observations at all).
func (l *List) Contains(node *Node) bool {
	if node == nil {
		return l.HasRest()
	}
	for _, child := range l.Ranges {
		if child.Contains(node) {
			return true
		}
	}
	return false
}

// ContainsList reports whether l contains every range in other (and, if
// other has rest, whether l has rest too).
func (l *List) ContainsList(other *List) bool {
	if other.HasRest() {
		return l.HasRest()
	}
	for _, child := range other.Ranges {
		if !l.Contains(child) {
			return false
		}
	}
	return true
}

func (l *List) overlapsSingle(otherRange *Node, start int) (bool, int) {
	newStart := l.searchLeast(otherRange.Least, start)
	newEnd := l.searchMost(otherRange.Most, start)
	return newStart <= newEnd, newEnd
}

// OverlapsSingle reports whether otherRange overlaps any node in l.
func (l *List) OverlapsSingle(otherRange *Node) bool {
	l.Flatten()
	ok, _ := l.overlapsSingle(otherRange, 0)
	return ok
}

// Overlaps reports whether l and other share any interval. Commutative:
// a.Overlaps(b) == b.Overlaps(a).
func (l *List) Overlaps(other *List) bool {
	if l.HasRest() || other.HasRest() {
		return true
	}
	l.Flatten()
	other.Flatten()

	currentStart := 0
	for _, otherRange := range other.Ranges {
		result, nextStart := l.overlapsSingle(otherRange, currentStart)
		if result {
			return true
		} else if nextStart >= len(l.Ranges) {
			return false
		} else if nextStart < 0 {
			currentStart = 0
		} else {
			currentStart = nextStart
		}
	}
	return false
}

// OverlapPair pairs the two sides' weights for a single overlapping span.
type OverlapPair struct {
	Self  weight.Weight
	Other weight.Weight
}

// Overlap is an overlapping sub-interval and the (self, other) weight pair
// that produced it.
type Overlap struct {
	Node *Node
	Pair OverlapPair
}

func (l *List) findSingleOverlaps(otherRange *Node, start int) ([]Overlap, int) {
	newStart := l.searchLeast(otherRange.Least, start)
	newEnd := l.searchMost(otherRange.Most, start)

	var overlaps []Overlap
	otherCount := otherRange.GetCount()
	hi := newEnd + 1
	if hi > len(l.Ranges) {
		hi = len(l.Ranges)
	}
	if newStart < 0 {
		newStart = 0
	}
	for i := newStart; i < hi; i++ {
		current := l.Ranges[i]
		if current.Overlaps(otherRange) {
			overlap := current.CreateShrinked(otherRange)
			overlaps = append(overlaps, Overlap{Node: overlap, Pair: OverlapPair{current.GetCount(), otherCount}})
		}
	}
	return overlaps, newEnd
}

// FindOverlaps returns every overlapping sub-interval between l and other,
// paired with the contributing (self, other) weights. Commutative up to
// pair order.
func (l *List) FindOverlaps(other *List) []Overlap {
	l.Flatten()
	other.Flatten()

	currentStart := 0
	var overlaps []Overlap
	for _, otherRange := range other.Ranges {
		newOverlaps, newStart := l.findSingleOverlaps(otherRange, currentStart)
		currentStart = newStart
		overlaps = append(overlaps, newOverlaps...)
	}
	return overlaps
}

// GetCoverers returns the nodes in l whose interval overlaps node. l is
// flattened first so a node with in-progress children (from Add, before its
// next Flatten) never leaks a stale Count.
func (l *List) GetCoverers(node *Node) []*Node {
	l.Flatten()
	if node == nil {
		return []*Node{nil}
	}
	leastIndex := l.searchLeast(node.Least, 0)
	if leastIndex < 0 {
		return nil
	}
	mostIndex := l.searchMost(node.Most, 0)
	if mostIndex >= len(l.Ranges) {
		return nil
	}
	if leastIndex > mostIndex {
		return nil
	}
	return l.Ranges[leastIndex : mostIndex+1]
}

// IsExactly reports whether l is a single flat node [v, v] with no rest.
func (l *List) IsExactly(v int64) bool {
	if l.HasRest() {
		return false
	}
	if len(l.Ranges) != 1 {
		return false
	}
	single := l.Ranges[0]
	return single.Least == v && single.Most == v
}

// GetExact returns the single exact value l represents, or (0, false).
func (l *List) GetExact() (int64, bool) {
	if l.HasRest() || len(l.Ranges) != 1 {
		return 0, false
	}
	single := l.Ranges[0]
	if single.Least != single.Most {
		return 0, false
	}
	return single.Least, true
}

func (l *List) includesSingle(otherRange *Node, start int) (bool, int) {
	newStart := l.searchLeast(otherRange.Least, start)
	newEnd := l.searchMost(otherRange.Most, start)

	lo, hi := newStart, newEnd+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(l.Ranges) {
		hi = len(l.Ranges)
	}
	for _, current := range l.Ranges[lo:hi] {
		if current.Contains(otherRange) {
			return true, newEnd
		}
	}
	return false, newEnd
}

// Includes reports whether l fully covers at least one node of other
// (matching the original's "includes" — existence, not universal coverage).
func (l *List) Includes(other *List) bool {
	l.Flatten()
	other.Flatten()

	currentStart := 0
	for _, single := range other.Ranges {
		does, nextStart := l.includesSingle(single, currentStart)
		if does {
			return true
		} else if nextStart >= len(l.Ranges) {
			return false
		} else if nextStart < 0 {
			currentStart = 0
		} else {
			currentStart = nextStart
		}
	}
	return false
}

func (l *List) GetMostKnown() (int64, bool) {
	if len(l.Ranges) == 0 {
		return 0, false
	}
	return l.Ranges[len(l.Ranges)-1].Most, true
}

func (l *List) GetLeastKnown() (int64, bool) {
	if len(l.Ranges) == 0 {
		return 0, false
	}
	return l.Ranges[0].Least, true
}

// Entry is one row of List iteration: Range == nil represents the rest
// bucket.
type Entry struct {
	Range *Node
	Value weight.Weight
}

// Entries iterates the rest bucket followed by every flat range, mirroring
// RangeIter.
func (l *List) Entries() []Entry {
	clone := l.CloneFlat(nil)
	out := make([]Entry, 0, len(clone.Ranges)+1)
	out = append(out, Entry{Range: nil, Value: clone.Rest})
	for _, r := range clone.Ranges {
		out = append(out, Entry{Range: r, Value: r.GetCount()})
	}
	return out
}

// GenerateSmooth collapses sequences of flat nodes where consecutive nodes
// are adjacent (prev.Most+1 == next.Least) into one wider node (count reset
// to 1).
// Runs after inter-program election so final error ranges are contiguous.
func GenerateSmooth(ranges []*Node) *List {
	var lastRange *Node
	var smoothened []*Node

	for _, node := range ranges {
		switch {
		case lastRange == nil:
			lastRange = node.CloneTop(weight.One)
		case lastRange.Most+1 == node.Least:
			lastRange = NewNode(lastRange.Least, node.Most, weight.One)
		default:
			smoothened = append(smoothened, lastRange)
			lastRange = node.CloneTop(weight.One)
		}
	}
	if lastRange != nil {
		smoothened = append(smoothened, lastRange)
	}
	return MustNew(smoothened, false, nil)
}

// Smoothen is GenerateSmooth(l.Ranges).
func Smoothen(l *List) *List {
	return GenerateSmooth(l.Ranges)
}
