// Package scheduler runs the advisor on a cron schedule and keeps the
// latest report for the API.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Advisor is the part of the advisor the scheduler drives.
type Advisor interface {
	Run(ctx context.Context, runDate time.Time) (*core.Report, error)
	Deliver(ctx context.Context, report *core.Report) error
}

// Scheduler manages the daily run.
type Scheduler struct {
	cron    *cron.Cron
	advisor Advisor
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	mu      sync.RWMutex
	latest  *core.Report
	lastErr error
}

// New registers the daily run at spec, a six-field cron expression with
// seconds.
func New(a Advisor, spec string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		advisor: a,
		logger:  logger,
		now:     time.Now,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, s.scheduledRun); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("schedule %q: %w", spec, err))
	}
	return s, nil
}

// Start starts the cron scheduler. A stopped scheduler can be started
// again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next_run", s.Next()))
}

// Stop stops the scheduler and cancels an in-flight run. The returned
// context is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	cancel()
	ctx := s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return ctx
}

// Next returns the next scheduled run time, zero if not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) scheduledRun() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// RunNow runs and delivers a report for today. Only one run executes at
// a time; a concurrent call gets core.ErrRunInProgress. Delivery failures
// are logged and do not fail the run.
func (s *Scheduler) RunNow(ctx context.Context) (*core.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, core.ErrRunInProgress
	}
	defer s.running.Store(false)

	report, err := s.advisor.Run(ctx, s.now())
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return nil, err
	}

	if err := s.advisor.Deliver(ctx, report); err != nil {
		s.logger.Warn("report delivery incomplete",
			zap.String("run_id", report.RunID),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	s.latest = report
	s.lastErr = nil
	s.mu.Unlock()
	return report, nil
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Latest returns the most recent successful report.
func (s *Scheduler) Latest() (*core.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// LastError returns the error of the last run, nil if it succeeded.
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Seed sets the latest report, e.g. from the archive at startup. It does
// not replace a newer report.
func (s *Scheduler) Seed(report *core.Report) {
	if report == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || s.latest.GeneratedAt.Before(report.GeneratedAt) {
		s.latest = report
	}
}
