// Package vote implements the two voting strategies from spec.md §4.5/§4.6:
// ExtremeVoter, which singles out histogram bins that stand apart from the
// rest of the distribution, and PolarVoter, which decides a binary question
// by comparing two tallies against a noise threshold. Grounded on
// original_source/analysis/vote.py.
package vote

import "math"

// Tally is one candidate's observation count in an ExtremeVoter pass
// (spec.md §4.5's "tally").
type Tally struct {
	Key   string
	Count float64
}

// ExtremeVoter selects every tally whose count is at least the mean of the
// *other* tallies (leave-one-out mean) plus thresholdRatio times the whole
// sample's standard deviation. vote.py computes a leave-one-out stdev too
// (lines resembling this loop) but immediately discards it in favor of the
// whole-sample stdev before comparing — so only the leave-one-out mean is
// actually "leave-one-out" in the original; the stdev term always uses
// every tally.
//
// A single tally always wins outright (there is no "rest" to compare
// against); fewer than minVotes tallies never produces a winner. A winning
// candidate must also tie the top count unless onlyThreshold allows any
// tally clearing the threshold to win regardless of rank. The vote itself
// is rejected (nil) if no tally clears the threshold, if every tally does
// (the split carries no information), or if more than one tally wins
// without allowTie set. To seek the smallest count rather than the
// largest, callers negate Count before building tallies — vote.py's
// inverted flag, ported as a sign flip at the call site instead of a
// parameter here.
func ExtremeVoter(tallies []Tally, thresholdRatio float64, minVotes int, allowTie, onlyThreshold bool) []string {
	n := len(tallies)
	if n < minVotes {
		return nil
	}
	if n == 1 {
		return []string{tallies[0].Key}
	}

	var sum, sumSq float64
	for _, t := range tallies {
		sum += t.Count
		sumSq += t.Count * t.Count
	}
	avg := sum / float64(n)
	varNum := sumSq - avg*sum
	if varNum < 0 {
		varNum = 0
	}
	wholeStdev := math.Sqrt(varNum / float64(n-1))

	top := tallies[0].Count
	for _, t := range tallies {
		if t.Count > top {
			top = t.Count
		}
	}

	var choices []string
	for _, t := range tallies {
		restSum := sum - t.Count
		restMean := restSum / float64(n-1)
		threshold := restMean + thresholdRatio*wholeStdev
		if t.Count >= threshold && (onlyThreshold || t.Count == top) {
			choices = append(choices, t.Key)
		}
	}

	nChoices := len(choices)
	if nChoices == 0 || nChoices == n || (nChoices > 1 && !allowTie) {
		return nil
	}
	return choices
}

// PolarVoter decides a binary question from a true/false tally pair
// (spec.md §4.6). It requires at least minTrue true votes to consider a
// true verdict at all; an unopposed true tally (no false votes) always
// wins; otherwise it compares the true count against a noise threshold
// derived from the hypergeometric-style variance of the true/false split.
func PolarVoter(trueCount, falseCount int, thresholdRatio float64, minTrue int) bool {
	if trueCount < minTrue {
		return false
	}
	if falseCount == 0 {
		return true
	}
	total := trueCount + falseCount
	variance := float64(trueCount*falseCount) / float64(total*(total-1))
	stdev := math.Sqrt(variance)
	threshold := float64(falseCount) + thresholdRatio*stdev
	return float64(trueCount) > threshold
}
