package election

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoepex/autoepex/internal/aggregate"
	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/pathmodel"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

func mustParse(t *testing.T, s string) *value.Value {
	t.Helper()
	v, err := value.Parse(diag.NewContext(), s, weight.One)
	require.NoError(t, err)
	return v
}

// callPath builds a minimal CallPath for a call-site observation; distinct
// call indices keep every observation in its own site bucket so they never
// collide in SitePaths, matching how distinct traced call expressions in
// the same function would appear.
func callPath(call int, ret *value.Value) *pathmodel.CallPath {
	callee := pathmodel.Segment{File: "a.c", Function: "open", Line: 10 + call, Branch: "1", IsCaller: false}
	caller := pathmodel.Segment{File: "a.c", Function: "main", Line: 5, Branch: "1", IsCaller: true}
	return pathmodel.BuildCallPath([]pathmodel.Segment{callee, caller}, ret)
}

func TestElectFallibleFunction(t *testing.T) {
	a := aggregate.New()
	for i := 0; i < 20; i++ {
		v := mustParse(t, "I0")
		a.Observe("open", value.Integer, v, callPath(i, v), nil)
	}
	for i := 0; i < 3; i++ {
		v := mustParse(t, "I-1")
		programExit := mustParse(t, "I1")
		a.Observe("open", value.Integer, v, callPath(20+i, v), programExit)
	}
	decision := Elect(a.Functions()["open"], DefaultTuning)
	require.True(t, decision.IsFallible)
	require.Contains(t, decision.ErrorLabels, "-1_-1")
}

func TestElectNonFallibleFunction(t *testing.T) {
	a := aggregate.New()
	for i := 0; i < 10; i++ {
		a.Observe("noop", value.Void, mustParse(t, "V"), nil, nil)
	}
	decision := Elect(a.Functions()["noop"], DefaultTuning)
	require.False(t, decision.IsFallible)
}

// TestElectFallsBackToThresholdVote grounds tally_threshold's least-count
// tier: with no traced program exit at all (so the exit vote has nothing
// to tally), a label observed far less often than the rest is still
// picked out as the error branch.
func TestElectFallsBackToThresholdVote(t *testing.T) {
	a := aggregate.New()
	for i := 0; i < 20; i++ {
		v := mustParse(t, "Pnotnull")
		a.Observe("mallocish", value.Pointer, v, callPath(i, v), nil)
	}
	for i := 0; i < 2; i++ {
		v := mustParse(t, "Pnull")
		a.Observe("mallocish", value.Pointer, v, callPath(20+i, v), nil)
	}
	decision := Elect(a.Functions()["mallocish"], DefaultTuning)
	require.True(t, decision.IsFallible)
	require.Equal(t, []string{"n"}, decision.ErrorLabels)
}

func TestInterProgramElectionMajority(t *testing.T) {
	results := []ProgramResult{
		{ProgramID: "p1", Decision: Decision{Function: "open", IsFallible: true, ErrorLabels: []string{"-1_-1"}}},
		{ProgramID: "p2", Decision: Decision{Function: "open", IsFallible: true, ErrorLabels: []string{"-1_-1"}}},
		{ProgramID: "p3", Decision: Decision{Function: "open", IsFallible: false}},
	}
	final := InterProgramElection(results, 0.5)
	require.True(t, final.IsFallible)
	require.Equal(t, []string{"-1_-1"}, final.ErrorLabels)
}

func TestInterProgramElectionSmoothensTouchingRanges(t *testing.T) {
	results := []ProgramResult{
		{ProgramID: "p1", Decision: Decision{Function: "f", IsFallible: true, ErrorLabels: []string{"0_5"}}},
		{ProgramID: "p2", Decision: Decision{Function: "f", IsFallible: true, ErrorLabels: []string{"6_10"}}},
	}
	final := InterProgramElection(results, 0.5)
	require.True(t, final.IsFallible)
	require.Equal(t, []string{"0_10"}, final.ErrorLabels)
}
