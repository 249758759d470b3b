package rng

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoepex/autoepex/internal/weight"
)

func mustList(t *testing.T, nodes []*Node, asList bool) *List {
	t.Helper()
	l, err := New(nodes, asList, nil)
	require.NoError(t, err)
	return l
}

func n(least, most int64, count float64) *Node {
	return NewNode(least, most, weight.Scalar(count))
}

func assertRanges(t *testing.T, l *List, want []*Node) {
	t.Helper()
	l.Flatten()
	require.Len(t, l.Ranges, len(want))
	for i, w := range want {
		got := l.Ranges[i]
		require.Equal(t, w.Least, got.Least, "range %d least", i)
		require.Equal(t, w.Most, got.Most, "range %d most", i)
		require.InDelta(t, float64(w.Count.(weight.Scalar)), float64(got.Count.(weight.Scalar)), 1e-9, "range %d count", i)
	}
}

// These five cases are the seed scenarios for RangeList.Add: each merges a
// single wide incoming range into an existing disjoint set.
func TestListAddSeedScenarios(t *testing.T) {
	t.Run("above", func(t *testing.T) {
		self := mustList(t, []*Node{n(33, 34, 1), n(36, 38, 1)}, false)
		other := mustList(t, []*Node{n(0, 32, 1)}, false)
		self.Add(other)
		assertRanges(t, self, []*Node{n(0, 32, 1), n(33, 34, 1), n(36, 38, 1)})
	})

	t.Run("within_big", func(t *testing.T) {
		self := mustList(t, []*Node{n(-25, -5, 1), n(-4, -2, 1), n(2, 4, 1), n(5, 25, 1)}, false)
		other := mustList(t, []*Node{n(-1024, 1024, 1)}, false)
		self.Add(other)
		assertRanges(t, self, []*Node{
			n(-1024, -26, 1),
			n(-25, -5, 2),
			n(-4, -2, 2),
			n(-1, 1, 1),
			n(2, 4, 2),
			n(5, 25, 2),
			n(26, 1024, 1),
		})
	})

	t.Run("touch_below", func(t *testing.T) {
		self := mustList(t, []*Node{n(-5, 3, 1), n(35, 50, 1)}, false)
		other := mustList(t, []*Node{n(0, 32, 1)}, false)
		self.Add(other)
		assertRanges(t, self, []*Node{n(-5, -1, 1), n(0, 3, 2), n(4, 32, 1), n(35, 50, 1)})
	})

	t.Run("subsume_top", func(t *testing.T) {
		self := mustList(t, []*Node{n(-36, -6, 1), n(1, 3, 1)}, false)
		other := mustList(t, []*Node{n(0, 32, 1)}, false)
		self.Add(other)
		assertRanges(t, self, []*Node{n(-36, -6, 1), n(0, 0, 1), n(1, 3, 2), n(4, 32, 1)})
	})

	t.Run("zero_plus_nonzero", func(t *testing.T) {
		self := mustList(t, []*Node{n(-(1 << 31), -1, 1), n(1, (1<<31)-1, 1)}, false)
		other := mustList(t, []*Node{n(0, 0, 1)}, false)
		self.Add(other)
		assertRanges(t, self, []*Node{n(-(1 << 31), -1, 1), n(0, 0, 1), n(1, (1<<31)-1, 1)})
	})
}

func TestListAddIntoEmpty(t *testing.T) {
	self := mustList(t, nil, false)
	self.Increment(weight.Scalar(2))
	other := mustList(t, []*Node{n(1, 5, 3)}, false)
	other.Increment(weight.Scalar(4))
	self.Add(other)
	assertRanges(t, self, []*Node{n(1, 5, 3)})
	require.InDelta(t, 6, float64(self.Rest.(weight.Scalar)), 1e-9)
}

func TestListAddRestOnlyIncrementsRest(t *testing.T) {
	self := mustList(t, []*Node{n(1, 5, 1)}, false)
	restOnly, err := New(nil, false, weight.Scalar(3))
	require.NoError(t, err)
	self.Add(restOnly)
	assertRanges(t, self, []*Node{n(1, 5, 1)})
	require.InDelta(t, 3, float64(self.Rest.(weight.Scalar)), 1e-9)
}

func TestNewRejectsOverlap(t *testing.T) {
	_, err := New([]*Node{n(1, 5, 1), n(3, 8, 1)}, false, nil)
	require.Error(t, err)
}

func TestContainsAndIsExactly(t *testing.T) {
	l := mustList(t, []*Node{n(1, 10, 1)}, false)
	require.True(t, l.Contains(n(2, 5, 1)))
	require.False(t, l.Contains(n(2, 20, 1)))

	single := mustList(t, []*Node{n(7, 7, 1)}, false)
	require.True(t, single.IsExactly(7))
	require.False(t, l.IsExactly(7))

	v, ok := single.GetExact()
	require.True(t, ok)
	require.EqualValues(t, 7, v)
}

func TestOverlapsCommutative(t *testing.T) {
	a := mustList(t, []*Node{n(1, 5, 1), n(10, 15, 1)}, false)
	b := mustList(t, []*Node{n(4, 6, 1)}, false)
	require.True(t, a.Overlaps(b))
	require.True(t, b.Overlaps(a))

	c := mustList(t, []*Node{n(20, 25, 1)}, false)
	require.False(t, a.Overlaps(c))
}

func TestGetCoverers(t *testing.T) {
	l := mustList(t, []*Node{n(0, 5, 1), n(10, 15, 1), n(20, 25, 1)}, false)
	coverers := l.GetCoverers(n(12, 22, 1))
	require.Len(t, coverers, 2)
	require.EqualValues(t, 10, coverers[0].Least)
	require.EqualValues(t, 20, coverers[1].Least)
}

func TestCloneBinderTracksCoverers(t *testing.T) {
	base := mustList(t, []*Node{n(0, 10, 1), n(20, 30, 1)}, false)
	bound := base.CloneBinder()
	require.Len(t, bound.Ranges, 2)

	other := mustList(t, []*Node{n(5, 25, 1)}, false)
	bound.Add(other.CloneBinder())

	merged := bound.GetCoverers(n(15, 15, 1))
	require.Len(t, merged, 1)
	binder, ok := merged[0].Count.(*Binder)
	require.True(t, ok)
	require.Len(t, binder.Entries(), 1)
}

func TestGenerateSmoothMergesTouchingRanges(t *testing.T) {
	l := mustList(t, []*Node{n(1, 5, 1), n(6, 10, 1), n(20, 25, 1)}, false)
	smoothed := Smoothen(l)
	assertRanges(t, smoothed, []*Node{n(1, 10, 1), n(20, 25, 1)})
}

func TestGenNormalized(t *testing.T) {
	l := mustList(t, []*Node{n(1, 5, 3), n(10, 15, 1)}, false)
	normalized := l.GenNormalized(weight.Scalar(4))
	require.InDelta(t, 0.75, float64(normalized.Ranges[0].Count.(weight.Scalar)), 1e-9)
	require.InDelta(t, 0.25, float64(normalized.Ranges[1].Count.(weight.Scalar)), 1e-9)
}
