package s3_metrics

import (
	"math"
	"sort"
)

// Median returns the median of values (0 when empty)
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (0..100) with linear interpolation
// between closest ranks. Empty input or non-finite values only → 0.
func Percentile(values []float64, p float64) float64 {
	sorted := finite(values)
	if len(sorted) == 0 || p < 0 || p > 100 {
		return 0
	}
	sort.Float64s(sorted)

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// rate returns num/den, 0 when den is 0
func rate(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}
