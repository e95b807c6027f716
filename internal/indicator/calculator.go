package indicator

import (
	"errors"
	"math"

	"github.com/newthinker/etfadvisor/internal/core"
)

// Params holds the indicator windows.
type Params struct {
	SMADays      int
	LookbackDays int
	ZScoreWindow int
}

// DefaultParams returns the standard windows: 200-day SMA, 126-day high,
// 30-day z-score.
func DefaultParams() Params {
	return Params{
		SMADays:      200,
		LookbackDays: 126,
		ZScoreWindow: 30,
	}
}

// Calculate computes the indicators describing the most recent day of prices.
// Short series degrade to the available data, except for the SMA which is
// absent below SMADays observations.
func Calculate(prices []float64, p Params) (core.IndicatorSet, error) {
	if len(prices) == 0 {
		return core.IndicatorSet{}, core.WrapError(core.ErrInvalidInput, errors.New("price series is empty"))
	}

	return core.IndicatorSet{
		CloseToday: prices[len(prices)-1],
		SMA:        LastSMA(prices, p.SMADays),
		Drawdown:   Drawdown(prices, p.LookbackDays),
		ZScore:     ZScore(prices, p.ZScoreWindow),
	}, nil
}

// Drawdown returns the fractional distance of the last price below the
// highest price of the trailing lookback window. Always <= 0.
func Drawdown(prices []float64, lookback int) float64 {
	if len(prices) == 0 {
		return 0
	}
	closeToday := prices[len(prices)-1]
	high := math.Max(closeToday, Max(Tail(prices, lookback)))
	return closeToday/high - 1
}

// ZScore returns how many population standard deviations the last price
// lies from the mean of the trailing window. A flat window yields 0.
func ZScore(prices []float64, window int) float64 {
	if len(prices) == 0 {
		return 0
	}
	closeToday := prices[len(prices)-1]
	w := Tail(prices, window)
	std := PopStdDev(w)
	if std == 0 {
		return 0
	}
	return (closeToday - Mean(w)) / std
}
