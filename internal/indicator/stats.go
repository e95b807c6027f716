package indicator

import "math"

// Tail returns the last n prices, or all of them when n exceeds the length.
func Tail(prices []float64, n int) []float64 {
	if n >= len(prices) {
		return prices
	}
	if n <= 0 {
		return prices[len(prices):]
	}
	return prices[len(prices)-n:]
}

// Sum adds up all values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// PopStdDev returns the population standard deviation (divides by N).
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// Max returns the largest value, -Inf for an empty slice.
func Max(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
