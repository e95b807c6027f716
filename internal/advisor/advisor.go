// Package advisor runs the signal engine over the configured tickers and
// delivers the resulting report.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/etfadvisor/internal/collector"
	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/history"
	"github.com/newthinker/etfadvisor/internal/metrics"
	"github.com/newthinker/etfadvisor/internal/notifier"
	"github.com/newthinker/etfadvisor/internal/storage/archive"
	"go.uber.org/zap"
)

// Options wires the advisor's collaborators. Notifiers, Archive and
// Metrics are optional.
type Options struct {
	Tickers   []string
	History   history.Options
	Notifiers *notifier.Registry
	Archive   archive.Storage
	Metrics   *metrics.Registry
	Logger    *zap.Logger
}

// Advisor is the main orchestrator
type Advisor struct {
	collector collector.Collector
	rebuilder *history.Rebuilder
	tickers   []string
	opts      history.Options
	notifiers *notifier.Registry
	archive   archive.Storage
	metrics   *metrics.Registry
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Advisor.
func New(c collector.Collector, r *history.Rebuilder, opts Options) (*Advisor, error) {
	if c == nil || r == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("collector and rebuilder are required"))
	}
	if len(opts.Tickers) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one ticker is required"))
	}
	if err := opts.History.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifiers == nil {
		opts.Notifiers = notifier.NewRegistry()
	}

	return &Advisor{
		collector: c,
		rebuilder: r,
		tickers:   append([]string(nil), opts.Tickers...),
		opts:      opts.History,
		notifiers: opts.Notifiers,
		archive:   opts.Archive,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// Tickers returns the configured tickers.
func (a *Advisor) Tickers() []string {
	return append([]string(nil), a.tickers...)
}

// Run rebuilds the recent signal history of every ticker as of runDate.
// A ticker that cannot be analyzed is recorded in Report.Failures and
// does not stop the others. Only context cancellation aborts the run.
func (a *Advisor) Run(ctx context.Context, runDate time.Time) (*core.Report, error) {
	return a.run(ctx, runDate, "history", a.tickerHistory)
}

// Analyze evaluates the current day of every ticker as of runDate. Each
// history in the report holds a single signal.
func (a *Advisor) Analyze(ctx context.Context, runDate time.Time) (*core.Report, error) {
	return a.run(ctx, runDate, "realtime", a.tickerCurrent)
}

type tickerFunc func(ctx context.Context, ticker string, runDate time.Time) (core.SignalHistory, error)

func (a *Advisor) run(ctx context.Context, runDate time.Time, mode string, analyze tickerFunc) (*core.Report, error) {
	start := a.now()
	report := &core.Report{
		RunID:     uuid.Must(uuid.NewV7()).String(),
		RunDate:   runDate.Format(core.DateLayout),
		Tickers:   a.Tickers(),
		Histories: make(map[string]core.SignalHistory, len(a.tickers)),
		Failures:  make(map[string]string),
	}

	a.logger.Info("starting run",
		zap.String("run_id", report.RunID),
		zap.String("mode", mode),
		zap.String("run_date", report.RunDate),
		zap.Int("tickers", len(a.tickers)),
	)

	for _, ticker := range a.tickers {
		if err := ctx.Err(); err != nil {
			a.finish(report, start, metrics.RunFailed)
			return report, err
		}

		h, err := analyze(ctx, ticker, runDate)
		if err != nil {
			a.logger.Warn("ticker skipped",
				zap.String("run_id", report.RunID),
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			report.Failures[ticker] = err.Error()
			a.recordTicker("failed")
			continue
		}

		report.Histories[ticker] = h
		a.recordTicker("ok")
		a.recordSignals(ticker, h)
	}

	status := metrics.RunOK
	switch {
	case report.Succeeded() == 0:
		status = metrics.RunFailed
	case len(report.Failures) > 0:
		status = metrics.RunPartial
	}
	a.finish(report, start, status)
	return report, nil
}

func (a *Advisor) finish(report *core.Report, start time.Time, status string) {
	end := a.now()
	report.GeneratedAt = end.UTC()
	if a.metrics != nil {
		a.metrics.RecordRun(status, end.Sub(start).Seconds(), float64(end.Unix()))
	}
	a.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.String("status", status),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("duration", end.Sub(start)),
	)
}

// fetch loads days closes and enforces the history floor.
func (a *Advisor) fetch(ctx context.Context, ticker string, days int, runDate time.Time) ([]float64, error) {
	prices, err := a.collector.FetchCloses(ctx, ticker, days, runDate)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ticker, err)
	}
	if len(prices) < a.opts.MinDaysNeeded {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("%s has %d days, need %d", ticker, len(prices), a.opts.MinDaysNeeded))
	}
	return prices, nil
}

func (a *Advisor) tickerHistory(ctx context.Context, ticker string, runDate time.Time) (core.SignalHistory, error) {
	prices, err := a.fetch(ctx, ticker, a.opts.MinDaysNeeded+a.opts.DaysToAnalyze, runDate)
	if err != nil {
		return nil, err
	}

	expected := 0
	for range history.Windows(len(prices), a.opts) {
		expected++
	}

	h := a.rebuilder.Rebuild(ticker, prices, runDate, a.opts)
	if a.metrics != nil {
		a.metrics.RecordSkippedDays(expected - len(h))
	}
	if len(h) == 0 {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("%s has no evaluable days in %d prices", ticker, len(prices)))
	}

	a.logger.Debug("history rebuilt",
		zap.String("ticker", ticker),
		zap.Int("prices", len(prices)),
		zap.Int("days", len(h)),
	)
	return h, nil
}

func (a *Advisor) tickerCurrent(ctx context.Context, ticker string, runDate time.Time) (core.SignalHistory, error) {
	prices, err := a.fetch(ctx, ticker, a.opts.MinDaysNeeded, runDate)
	if err != nil {
		return nil, err
	}
	sig, err := a.rebuilder.Current(ticker, prices, runDate)
	if err != nil {
		return nil, err
	}
	return core.SignalHistory{sig}, nil
}

func (a *Advisor) recordTicker(status string) {
	if a.metrics != nil {
		a.metrics.RecordTicker(status)
	}
}

func (a *Advisor) recordSignals(ticker string, h core.SignalHistory) {
	if a.metrics == nil {
		return
	}
	for _, sig := range h {
		a.metrics.RecordSignal(string(sig.Tier))
	}
	if latest, ok := h.Latest(); ok {
		a.metrics.SetBuyScore(ticker, latest.BuyScore)
	}
}

// Deliver sends the report through every notifier and archives it.
// Every target is attempted; failures are returned joined.
func (a *Advisor) Deliver(ctx context.Context, report *core.Report) error {
	var errs []error

	notifyErrs := a.notifiers.NotifyAll(ctx, report)
	for _, n := range a.notifiers.GetAll() {
		if err, failed := notifyErrs[n.Name()]; failed {
			a.logger.Error("notifier failed",
				zap.String("run_id", report.RunID),
				zap.String("notifier", n.Name()),
				zap.Error(err),
			)
			a.recordDelivery(n.Name(), "failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		a.recordDelivery(n.Name(), "ok")
	}

	if a.archive != nil {
		key, err := archive.SaveReport(ctx, a.archive, report)
		if err != nil {
			a.logger.Error("archive failed", zap.String("run_id", report.RunID), zap.Error(err))
			a.recordDelivery("archive", "failed")
			errs = append(errs, err)
		} else {
			a.logger.Info("report archived", zap.String("run_id", report.RunID), zap.String("key", key))
			a.recordDelivery("archive", "ok")
		}
	}

	return errors.Join(errs...)
}

func (a *Advisor) recordDelivery(target, status string) {
	if a.metrics != nil {
		a.metrics.RecordDelivery(target, status)
	}
}
