package indicator

import "github.com/newthinker/etfadvisor/internal/core"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	sum := Sum(prices[:period])
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// LastSMA returns the mean of the last period prices, or an absent value
// when fewer than period prices are available.
func LastSMA(prices []float64, period int) core.NullFloat {
	if period < 1 || len(prices) < period {
		return core.None()
	}
	return core.Some(SMA(Tail(prices, period), period)[0])
}
