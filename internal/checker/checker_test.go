package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSiteClassification(t *testing.T) {
	report := CheckSite("main.c:main", "malloc", []PathDisposition{Unchecked, Unchecked, Checked})
	require.False(t, report.AlwaysWrapped)
	require.False(t, report.AlwaysUnchecked)
	require.Equal(t, 2, report.UncheckedCount)
	require.Equal(t, 3, report.TotalCount)
}

func TestCheckFlagsRepeatedUncheckedSite(t *testing.T) {
	site := CheckSite("main.c:main", "malloc", []PathDisposition{Unchecked, Unchecked, Unchecked})
	c := NewBugsChecker()
	reports, total := c.Check([]SiteReport{site})
	require.Equal(t, 1, total)
	require.Len(t, reports, 1)
	require.Equal(t, "main.c:main", reports[0].Caller)
}

func TestCheckSuppressesWrappedSite(t *testing.T) {
	site := CheckSite("main.c:main", "malloc", []PathDisposition{Wrapped, Wrapped})
	c := NewBugsChecker()
	_, total := c.Check([]SiteReport{site})
	require.Equal(t, 0, total)
}

// TestCheckReportsIsolatedUncheckedSiteBelowMinSites grounds check_specs.py's
// try_report: with only one unchecked site at this function, the vote
// can't reach min_sites, so choose() returns false and the site is
// reported rather than suppressed — it's an anomaly against the function's
// otherwise-checked call sites, not the function's convention.
func TestCheckReportsIsolatedUncheckedSiteBelowMinSites(t *testing.T) {
	checkedHeavy := CheckSite("a.c:f", "malloc", []PathDisposition{Checked, Checked, Checked, Checked, Checked})
	isolatedUnchecked := CheckSite("a.c:g", "malloc", []PathDisposition{Unchecked})
	c := NewBugsChecker()
	reports, total := c.Check([]SiteReport{checkedHeavy, isolatedUnchecked})
	require.Equal(t, 1, total)
	require.Len(t, reports, 1)
	require.Equal(t, "a.c:g", reports[0].Caller)
}

// TestCheckSuppressesConventionallyUncheckedFunction grounds spec.md §4.8's
// "if most sites are already unchecked the function is judged
// conventionally unchecked and individual unchecked-bug reports are
// suppressed": with at least minSites unchecked call sites and no
// checked/wrapped sites at all to weigh against them, the vote is
// unopposed and suppresses every one of them.
func TestCheckSuppressesConventionallyUncheckedFunction(t *testing.T) {
	first := CheckSite("a.c:f", "malloc", []PathDisposition{Unchecked})
	second := CheckSite("a.c:g", "malloc", []PathDisposition{Unchecked})
	c := NewBugsChecker()
	reports, total := c.Check([]SiteReport{first, second})
	require.Equal(t, 0, total)
	require.Empty(t, reports)
}
