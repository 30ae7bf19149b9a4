package oracle

import (
	"fmt"
	"sort"
)

// Consensus filters a set of node feed values down to the ones that
// agree, then takes their median as the aggregate price. A value is kept
// when it sits inside the interquartile fence (Q1 - m*IQR, Q3 + m*IQR)
// and within the divergence band around the overall median. The IQR
// multiplier is a plain small integer (typically 1 to 4); only the
// divergence percentage is scaled by FactorResolution.

// Median returns the middle element of values. For an even count the
// lower of the two middle elements is used so the result is always one
// of the inputs. values must be non-empty and is not modified.
func Median(values []int64) int64 {
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}

// quartiles returns Q1 and Q3 of sorted, each computed as the average of
// the two elements straddling the quartile position, rounded toward
// negative infinity. sorted must be ascending and non-empty.
func quartiles(sorted []int64) (q1, q3 int64) {
	n := len(sorted)
	if n == 1 {
		return sorted[0], sorted[0]
	}
	half := n / 2
	lower := sorted[:half]
	var upper []int64
	if n%2 == 0 {
		upper = sorted[half:]
	} else {
		upper = sorted[half+1:]
	}
	return midpoint(lower), midpoint(upper)
}

func midpoint(sorted []int64) int64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	return floorDiv(a+b, 2)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ConsensusPrice runs the outlier filter over values and returns the
// median of the survivors. It fails when values is empty or when no
// value survives filtering.
func ConsensusPrice(values []int64, iqrMultiplier, divergencePct uint64) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("consensus: no values")
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	med := sorted[(len(sorted)-1)/2]
	q1, q3 := quartiles(sorted)
	iqr := q3 - q1

	// fence bounds widen by whole multiples of the IQR
	spread := iqr * int64(iqrMultiplier)
	lo := q1 - spread
	hi := q3 + spread

	// divergence band around the raw median
	band := floorDiv(abs64(med)*int64(divergencePct), FactorResolution)

	kept := sorted[:0]
	for _, v := range sorted {
		if v < lo || v > hi {
			continue
		}
		if divergencePct > 0 && abs64(v-med) > band {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return 0, fmt.Errorf("consensus: all %d values rejected as outliers", len(values))
	}
	return kept[(len(kept)-1)/2], nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
