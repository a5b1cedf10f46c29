// Package consensus aggregates independent oracle quality scores into a
// single consensus verdict and maps quality to refund policy. It is the only
// home for this computation; lifecycle code must call into it rather than
// carrying its own copy.
package consensus

import (
	"sort"

	"verdict.dev/client/protocol"
)

// DefaultMaxDeviationPct is the default consensus threshold: the maximum
// relative spread among oracle scores for their median to be trusted.
const DefaultMaxDeviationPct = 15.0

// Result is the derived outcome of one aggregation run. It is never
// persisted; the resolve instruction carries only the raw submissions.
type Result struct {
	Scores       []uint8 // ascending
	Median       uint8
	Min          uint8
	Max          uint8
	Deviation    uint8   // max − min
	DeviationPct float64 // deviation / median × 100
	Reached      bool
	RefundPct    uint8
}

// Compute aggregates verified oracle scores. The algorithm is order
// independent: any permutation of the same score multiset produces identical
// output.
//
// The median of an even-length list is the upper-middle element
// (sorted[n/2]), not the average of the two middle values. That asymmetric
// tie-break matches the on-chain program and is load-bearing: averaging would
// move scores across refund tier boundaries.
//
// A deviation above the threshold does not fail the call; it only marks the
// result untrusted (Reached=false) and the caller decides whether to proceed,
// retry with more oracles, or escalate. A zero median is different: the
// deviation percentage is undefined, so Compute reports maximal disagreement
// as an error rather than dividing by zero.
func Compute(scores []uint8, maxDeviationPct float64) (*Result, error) {
	if len(scores) == 0 {
		return nil, protocol.Errf(protocol.ERR_INPUT, "consensus: no scores")
	}
	if maxDeviationPct <= 0 {
		return nil, protocol.Errf(protocol.ERR_INPUT, "consensus: threshold %.2f must be > 0", maxDeviationPct)
	}
	sorted := make([]uint8, len(scores))
	copy(sorted, scores)
	for _, s := range sorted {
		if s > protocol.MaxQualityScore {
			return nil, protocol.Errf(protocol.ERR_INPUT, "consensus: score %d out of range [0,%d]", s, protocol.MaxQualityScore)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	median := sorted[len(sorted)/2]
	min := sorted[0]
	max := sorted[len(sorted)-1]
	deviation := max - min

	if median == 0 {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "consensus: zero median, maximal disagreement")
	}
	deviationPct := float64(deviation) / float64(median) * 100

	refund, err := RefundPercent(median)
	if err != nil {
		return nil, err
	}
	return &Result{
		Scores:       sorted,
		Median:       median,
		Min:          min,
		Max:          max,
		Deviation:    deviation,
		DeviationPct: deviationPct,
		Reached:      deviationPct <= maxDeviationPct,
		RefundPct:    refund,
	}, nil
}

// RefundPercent maps a quality score to the refund percentage via fixed,
// non-overlapping bands. This is protocol policy, shared with the on-chain
// program, so client-side estimation and final resolution agree:
//
//	[0,50)    → 100
//	[50,65)   → 75
//	[65,80)   → 35
//	[80,100]  → 0
func RefundPercent(score uint8) (uint8, error) {
	switch {
	case score > protocol.MaxQualityScore:
		return 0, protocol.Errf(protocol.ERR_INPUT, "refund: score %d out of range [0,%d]", score, protocol.MaxQualityScore)
	case score < 50:
		return 100, nil
	case score < 65:
		return 75, nil
	case score < 80:
		return 35, nil
	default:
		return 0, nil
	}
}
