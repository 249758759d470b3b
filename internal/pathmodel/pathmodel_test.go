package pathmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

func seg(file, fn string, line int, branch string, isCaller bool) Segment {
	return Segment{File: file, Function: fn, Line: line, Branch: branch, IsCaller: isCaller}
}

func TestBuildCallPathCollapsesLoop(t *testing.T) {
	raw := []Segment{
		seg("a.c", "f", 10, "true", false),
		seg("a.c", "f", 10, "true", false),
		seg("a.c", "f", 10, "true", false),
		seg("a.c", "f", 20, "false", false),
	}
	ret, err := value.Parse(diag.NewContext(), "I0", weight.One)
	require.NoError(t, err)

	path := BuildCallPath(raw, ret)
	require.Len(t, path.Edges, 2)
	require.Equal(t, 3, path.Edges[0].Count)
	require.Equal(t, 1, path.Edges[1].Count)
	require.Equal(t, 4, path.Length())
}

func TestGetKeyIgnoresLoopCount(t *testing.T) {
	short := []Segment{seg("a.c", "f", 10, "true", false), seg("a.c", "f", 20, "false", false)}
	long := []Segment{
		seg("a.c", "f", 10, "true", false),
		seg("a.c", "f", 10, "true", false),
		seg("a.c", "f", 20, "false", false),
	}
	p1 := BuildCallPath(short, nil)
	p2 := BuildCallPath(long, nil)
	require.Equal(t, p1.GetKey(), p2.GetKey())
}

func TestIsErrorExit(t *testing.T) {
	ret, err := value.Parse(diag.NewContext(), "I-1", weight.One)
	require.NoError(t, err)
	path := BuildCallPath(nil, ret)
	isError := func(v *value.Value) bool { return v.IsExactly(-1) }
	require.True(t, path.IsErrorExit(isError))
	require.False(t, path.IsErrorExit(func(v *value.Value) bool { return v.IsExactly(0) }))
}

func TestCallSiteKey(t *testing.T) {
	raw := []Segment{
		seg("a.c", "f", 10, "true", false),
		seg("b.c", "g", 5, "", true),
	}
	path := BuildCallPath(raw, nil)
	require.Equal(t, "f a.c:10", path.CallSiteKey())
}
