// Package history replays the signal engine over trailing windows of a
// price series to reconstruct the last few days of signals.
package history

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/indicator"
	"github.com/newthinker/etfadvisor/internal/score"
	"go.uber.org/zap"
)

// Options bounds a rebuild.
type Options struct {
	// MinDaysNeeded is both the window length and the minimum a window
	// must have to be evaluated.
	MinDaysNeeded int
	DaysToAnalyze int
}

// DefaultOptions returns 10 days of history over 220-day windows.
func DefaultOptions() Options {
	return Options{
		MinDaysNeeded: 220,
		DaysToAnalyze: 10,
	}
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	if o.MinDaysNeeded < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_days_needed must be positive, got %d", o.MinDaysNeeded))
	}
	if o.DaysToAnalyze < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("days_to_analyze cannot be negative, got %d", o.DaysToAnalyze))
	}
	return nil
}

// Window is a half-open [Start, End) range of a price series.
type Window struct {
	Start int
	End   int
}

// Len returns the number of prices in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Windows yields (dayOffset, window) pairs for a series of length n, newest
// first. Windows shorter than opts.MinDaysNeeded are not yielded. The
// sequence holds no state and can be ranged over repeatedly.
func Windows(n int, opts Options) iter.Seq2[int, Window] {
	return func(yield func(int, Window) bool) {
		for dayOffset := 0; dayOffset < opts.DaysToAnalyze && dayOffset < n-opts.MinDaysNeeded; dayOffset++ {
			end := n - dayOffset
			w := Window{Start: max(0, end-opts.MinDaysNeeded), End: end}
			if w.Len() < opts.MinDaysNeeded {
				continue
			}
			if !yield(dayOffset, w) {
				return
			}
		}
	}
}

// Rebuilder evaluates the indicator calculator and classifier over
// successive trailing windows.
type Rebuilder struct {
	params     indicator.Params
	classifier *score.Classifier
	calculate  func([]float64, indicator.Params) (core.IndicatorSet, error)
	logger     *zap.Logger
}

// NewRebuilder creates a rebuilder. A nil logger discards diagnostics.
func NewRebuilder(params indicator.Params, classifier *score.Classifier, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{
		params:     params,
		classifier: classifier,
		calculate:  indicator.Calculate,
		logger:     logger,
	}
}

// Evaluate computes one day's signal from a price window.
func (r *Rebuilder) Evaluate(ticker string, prices []float64, date time.Time) (core.DailySignal, error) {
	set, err := r.calculate(prices, r.params)
	if err != nil {
		return core.DailySignal{}, fmt.Errorf("calculating indicators: %w", err)
	}
	return core.DailySignal{
		Ticker:       ticker,
		Date:         date.Format(core.DateLayout),
		IndicatorSet: set,
		ScoreResult:  r.classifier.Score(set),
	}, nil
}

// Current evaluates the whole series as of runDate.
func (r *Rebuilder) Current(ticker string, prices []float64, runDate time.Time) (core.DailySignal, error) {
	return r.Evaluate(ticker, prices, runDate)
}

// Rebuild returns up to opts.DaysToAnalyze signals ordered oldest to newest.
//
// Each entry is dated runDate minus its day offset in calendar days, not
// trading days, so weekends and holidays shift the labels. Days that fail
// to evaluate are logged and left out.
func (r *Rebuilder) Rebuild(ticker string, prices []float64, runDate time.Time, opts Options) core.SignalHistory {
	history := make(core.SignalHistory, 0, max(0, opts.DaysToAnalyze))

	for dayOffset, w := range Windows(len(prices), opts) {
		sig, err := r.Evaluate(ticker, prices[w.Start:w.End], runDate.AddDate(0, 0, -dayOffset))
		if err != nil {
			r.logger.Warn("skipping day",
				zap.String("ticker", ticker),
				zap.Int("day_offset", dayOffset),
				zap.Error(err),
			)
			continue
		}
		history = append(history, sig)
	}

	slices.Reverse(history)
	return history
}
