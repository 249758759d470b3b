package valuestat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

func mustParse(t *testing.T, s string) *value.Value {
	t.Helper()
	v, err := value.Parse(diag.NewContext(), s, weight.One)
	require.NoError(t, err)
	return v
}

func TestBooleanStatTally(t *testing.T) {
	s := NewBooleanStat()
	s.Add(mustParse(t, "Btrue"))
	s.Add(mustParse(t, "Btrue"))
	s.Add(mustParse(t, "Bfalse"))

	require.InDelta(t, 2, s.Count("t"), 1e-9)
	require.InDelta(t, 1, s.Count("f"), 1e-9)
	require.InDelta(t, 3, s.Total(), 1e-9)
	require.Equal(t, []string{"f", "t"}, s.Labels())
}

func TestPointerStatTally(t *testing.T) {
	s := NewPointerStat()
	s.Add(mustParse(t, "Pnotnull"))
	s.Add(mustParse(t, "Pnullornotnull"))

	require.InDelta(t, 1, s.Count("m"), 1e-9)
	require.InDelta(t, 1, s.Count("u"), 1e-9)
	require.InDelta(t, 2, s.Total(), 1e-9)
}

func TestIntegerStatTallyAndUnknown(t *testing.T) {
	s := NewIntegerStat()
	s.Add(mustParse(t, "I-5"))
	s.Add(mustParse(t, "I10"))
	s.Add(mustParse(t, "Ia:=u"))

	require.InDelta(t, 1, s.Count(value.UnknownLabel), 1e-9)
	require.InDelta(t, 3, s.Total(), 1e-9)
	require.Contains(t, s.Labels(), "-5_-5")
	require.Contains(t, s.Labels(), "10_10")
}

func TestIntegerStatCoversExact(t *testing.T) {
	s := NewIntegerStat()
	v, err := value.Parse(diag.NewContext(), "I&x:=a:={ [0, 10] }", weight.One)
	require.NoError(t, err)
	s.Add(v)

	node := v.Range.Ranges[0]
	require.Equal(t, CoverExact, s.Covers(node))
}

func TestIntegerStatCoversUnder(t *testing.T) {
	s := NewIntegerStat()
	v, err := value.Parse(diag.NewContext(), "I&x:=a:={ [0, 10] }", weight.One)
	require.NoError(t, err)
	s.Add(v)

	candidate := rng.NewNode(-5, 20, weight.One)
	require.Equal(t, CoverUnder, s.Covers(candidate))
}
