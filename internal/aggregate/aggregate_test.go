package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

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

// callSite builds a CallPath at one fixed call-site identity (same callee
// function and call location), so repeated calls model distinct trace-log
// occurrences of the same call site.
func callSite(calleeValue *value.Value) *pathmodel.CallPath {
	callee := pathmodel.Segment{File: "a.c", Function: "inner_alloc", Line: 10, Branch: "1", IsCaller: false}
	caller := pathmodel.Segment{File: "a.c", Function: "caller", Line: 5, Branch: "1", IsCaller: true}
	return pathmodel.BuildCallPath([]pathmodel.Segment{callee, caller}, calleeValue)
}

func TestObserveAccumulatesStat(t *testing.T) {
	a := New()
	a.Observe("open", value.Integer, mustParse(t, "I-1"), nil, nil)
	a.Observe("open", value.Integer, mustParse(t, "I0"), nil, nil)

	fc := a.Functions()["open"]
	require.NotNil(t, fc)
	require.Equal(t, 2, fc.Total())
}

// TestObserveBuffersMatchingAssignmentUntilSiteConfirmedUnwrapped grounds
// Comment 2's fix: a value that looks like a wrapped pass-through of the
// caller's own return is held back, not committed, until the same call
// site produces an observation that doesn't match.
func TestObserveBuffersMatchingAssignmentUntilSiteConfirmedUnwrapped(t *testing.T) {
	a := New()

	wrapped := mustParse(t, "P&e:=notnull")
	callerMatch := mustParse(t, "P&e:=notnull")
	a.Observe("inner_alloc", value.Pointer, wrapped, callSite(wrapped), callerMatch)
	require.Nil(t, a.Functions()["inner_alloc"], "matching assignment must stay buffered, not committed")

	unwrapped := mustParse(t, "Pnotnull")
	callerMismatch := mustParse(t, "P&f:=notnull")
	a.Observe("inner_alloc", value.Pointer, unwrapped, callSite(unwrapped), callerMismatch)

	fc := a.Functions()["inner_alloc"]
	require.NotNil(t, fc)
	require.Equal(t, 2, fc.Total(), "the buffered observation must flush in alongside the unwrapped one")
}

// TestObserveStaysUnwrappedOnceConfirmed grounds Comment 2's "a site never
// reverts to maybe-wrapped" rule: once a site is confirmed not wrapped,
// every later observation there commits immediately, even one whose
// values individually match again.
func TestObserveStaysUnwrappedOnceConfirmed(t *testing.T) {
	a := New()

	v1 := mustParse(t, "Pnotnull")
	c1 := mustParse(t, "P&f:=notnull")
	a.Observe("inner_alloc", value.Pointer, v1, callSite(v1), c1)
	require.Equal(t, 1, a.Functions()["inner_alloc"].Total())

	v2 := mustParse(t, "P&e:=notnull")
	a.Observe("inner_alloc", value.Pointer, v2, callSite(v2), v2)
	require.Equal(t, 2, a.Functions()["inner_alloc"].Total())
}

func TestObserveWithoutCallerReturnCommitsImmediately(t *testing.T) {
	a := New()
	v := mustParse(t, "P&e:=notnull")
	a.Observe("inner_alloc", value.Pointer, v, callSite(v), nil)
	require.Equal(t, 1, a.Functions()["inner_alloc"].Total())
}

func TestObserveTracksErrorExit(t *testing.T) {
	a := New()
	v := mustParse(t, "Pnull")
	nonzeroExit := mustParse(t, "I1")
	a.Observe("inner_alloc", value.Pointer, v, callSite(v), nonzeroExit)

	fc := a.Functions()["inner_alloc"]
	require.NotNil(t, fc)
	obs := fc.LabelObservations[v.GetKey()]
	require.Len(t, obs, 1)
	require.True(t, obs[0].ErrorExit)
}

func TestNewFileKeepsFunctionRecords(t *testing.T) {
	a := New()
	a.Observe("open", value.Integer, mustParse(t, "I-1"), nil, nil)
	require.Len(t, a.Functions(), 1)
	a.NewFile()
	require.Len(t, a.Functions(), 1)
}

func TestTooManyUnknown(t *testing.T) {
	a := New()
	a.Observe("f", value.Integer, mustParse(t, "Ia:=u"), nil, nil)
	a.Observe("f", value.Integer, mustParse(t, "Ib:=u"), nil, nil)
	fc := a.Functions()["f"]
	require.True(t, fc.TooManyUnknown(0.5))
	require.False(t, fc.TooManyUnknown(2.0))
}
