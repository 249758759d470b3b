package value

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/weight"
)

func TestParseVoid(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "V", weight.One)
	require.NoError(t, err)
	require.Equal(t, Void, v.Kind)
	require.Equal(t, "V", v.String())
}

func TestParseBoolVerbose(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "Btrue", weight.One)
	require.NoError(t, err)
	require.Equal(t, Bool, v.Kind)
	require.Equal(t, BoolTrue, v.Bool)
	require.Equal(t, "t", v.GetKey())

	v, err = Parse(d, "Btrueorfalse", weight.One)
	require.NoError(t, err)
	require.True(t, v.IsUnknown())
}

func TestParsePointerVerboseWithSymbol(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "P&x:=notnull", weight.One)
	require.NoError(t, err)
	require.Equal(t, Pointer, v.Kind)
	require.True(t, v.HasSymbol)
	require.Equal(t, "x", v.Symbol)
	require.Equal(t, PtrNotNull, v.Pointer)
	require.Equal(t, "m", v.GetKey())
}

func TestParseIntLiteral(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "I-5", weight.One)
	require.NoError(t, err)
	require.Equal(t, Integer, v.Kind)
	require.True(t, v.IsExactly(-5))

	v, err = Parse(d, "I42U", weight.One)
	require.NoError(t, err)
	require.True(t, v.IsExactly(42))
}

func TestParseIntAssignmentChainUnknown(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "I&y:=a:=u", weight.One)
	require.NoError(t, err)
	require.True(t, v.HasSymbol)
	require.Equal(t, "y", v.Symbol)
	require.True(t, v.IsUnknown())
}

func TestParseIntAssignmentChainRangeSet(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "I&z:=a\\b:={ [0, 10], [20, 30] }", weight.One)
	require.NoError(t, err)
	require.Equal(t, "z", v.Symbol)
	require.False(t, v.IsUnknown())
	require.Equal(t, "0_10,20_30", v.GetKey())
}

func TestOverlapsUnknownWildcard(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "Bfalse", weight.One)
	require.NoError(t, err)
	require.True(t, v.Overlaps(UnknownLabel))
	require.True(t, v.Overlaps("f"))
	require.False(t, v.Overlaps("t"))
}

func TestSameAssignments(t *testing.T) {
	d := diag.NewContext()
	a, err := Parse(d, "P&x:=notnull", weight.One)
	require.NoError(t, err)
	b, err := Parse(d, "P&x:=null", weight.One)
	require.NoError(t, err)
	require.True(t, a.SameAssignments(b))

	c, err := Parse(d, "Pnotnull", weight.One)
	require.NoError(t, err)
	require.False(t, a.SameAssignments(c))
}

func TestReparseRoundTrip(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "I&z:=a\\b:={ [0, 10], [20, 30] }", weight.One)
	require.NoError(t, err)
	key := v.GetKey()

	back, err := Reparse(d, Integer, key, weight.One)
	require.NoError(t, err)
	require.Equal(t, key, back.GetKey())

	boolBack, err := Reparse(d, Bool, "t", weight.One)
	require.NoError(t, err)
	require.Equal(t, BoolTrue, boolBack.Bool)

	ptrBack, err := Reparse(d, Pointer, "u", weight.One)
	require.NoError(t, err)
	require.True(t, ptrBack.IsUnknown())
}

func TestCloneNewDataPreservesRange(t *testing.T) {
	d := diag.NewContext()
	v, err := Parse(d, "I5", weight.One)
	require.NoError(t, err)
	clone := v.CloneNewData(weight.Scalar(3))
	require.True(t, clone.IsExactly(5))
	require.InDelta(t, 3, clone.Weight.Count(), 1e-9)
}
