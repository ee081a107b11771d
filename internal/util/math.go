package util

import "math"

// WrapClamp wraps n into the inclusive range [min, max].
func WrapClamp(n, min, max int) int {
	rangeSize := max - min + 1
	if rangeSize <= 0 {
		return min
	}
	return min + (((n-min)%rangeSize)+rangeSize)%rangeSize
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
// Ties resolve to the lowest index.
func ArgMax(values []float64) int {
	best := -1
	for i, v := range values {
		if best == -1 || v > values[best] {
			best = i
		}
	}
	return best
}
