// Package score turns an indicator set into a 0-100 buy score and tier.
package score

import (
	"math"

	"github.com/newthinker/etfadvisor/internal/core"
)

// Component weights. They sum to 1.
const (
	TrendWeight    = 0.25
	DrawdownWeight = 0.45
	ZScoreWeight   = 0.30
)

// Trend sub-scores.
const (
	trendAboveSMA = 1.0
	trendOther    = 0.3
)

// Params holds the normalization ceilings and tier thresholds.
type Params struct {
	DrawdownMax   float64
	ZScoreMax     float64
	TierStrongBuy int
	TierBuy       int
	TierDCAOnly   int
}

// DefaultParams returns the standard ceilings (12% drawdown, z of 2.5)
// and thresholds 75/55/35.
func DefaultParams() Params {
	return Params{
		DrawdownMax:   0.12,
		ZScoreMax:     2.5,
		TierStrongBuy: 75,
		TierBuy:       55,
		TierDCAOnly:   35,
	}
}

// Classifier scores indicator sets. It holds no mutable state.
type Classifier struct {
	params Params
}

// NewClassifier creates a classifier with the given parameters
func NewClassifier(p Params) *Classifier {
	return &Classifier{params: p}
}

// Params returns the active parameters.
func (c *Classifier) Params() Params {
	return c.params
}

// Score combines trend, drawdown and z-score into a ScoreResult.
// NaN indicators are not guarded against.
func (c *Classifier) Score(set core.IndicatorSet) core.ScoreResult {
	trend := trendOther
	if set.SMA.Valid && set.CloseToday > set.SMA.Value {
		trend = trendAboveSMA
	}

	dd := clamp(math.Abs(math.Min(set.Drawdown, 0))/c.params.DrawdownMax, 0, 1)
	z := clamp(math.Abs(math.Min(set.ZScore, 0))/c.params.ZScoreMax, 0, 1)

	result := core.ScoreResult{
		TrendScore:    trend,
		DrawdownScore: dd,
		ZScoreScore:   z,
	}
	result.BuyScore = int(clamp(BaseScore(result), 0, 100))
	result.Tier = c.TierFor(result.BuyScore)
	return result
}

// TierFor maps a buy score to a tier. Lower bounds are inclusive.
func (c *Classifier) TierFor(buyScore int) core.Tier {
	switch {
	case buyScore >= c.params.TierStrongBuy:
		return core.TierStrongBuy
	case buyScore >= c.params.TierBuy:
		return core.TierBuy
	case buyScore >= c.params.TierDCAOnly:
		return core.TierDCAOnly
	default:
		return core.TierWait
	}
}

// Contributions returns the weighted points of each sub-score.
func Contributions(r core.ScoreResult) (trend, drawdown, zscore float64) {
	return 100 * TrendWeight * r.TrendScore,
		100 * DrawdownWeight * r.DrawdownScore,
		100 * ZScoreWeight * r.ZScoreScore
}

// BaseScore is the unclamped, untruncated weighted score.
func BaseScore(r core.ScoreResult) float64 {
	return 100 * (TrendWeight*r.TrendScore + DrawdownWeight*r.DrawdownScore + ZScoreWeight*r.ZScoreScore)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
