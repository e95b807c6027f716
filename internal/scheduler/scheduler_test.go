package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdvisor struct {
	mu         sync.Mutex
	runs       int
	delivered  int
	runErr     error
	deliverErr error
	block      chan struct{}
	started    chan struct{}
	ctxErrs    []error
}

func (f *fakeAdvisor) Run(ctx context.Context, runDate time.Time) (*core.Report, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &core.Report{
		RunID:       "run",
		RunDate:     runDate.Format(core.DateLayout),
		GeneratedAt: runDate,
	}, nil
}

func (f *fakeAdvisor) Deliver(ctx context.Context, report *core.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered++
	return f.deliverErr
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(&fakeAdvisor{}, "not a cron", nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	// five-field specs need the seconds column
	_, err = New(&fakeAdvisor{}, "30 21 * * 1-5", nil)
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	fa := &fakeAdvisor{deliverErr: errors.New("smtp down")}
	s, err := New(fa, "0 30 21 * * 1-5", nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 1, 3, 21, 30, 0, 0, time.UTC) }

	_, ok := s.Latest()
	assert.False(t, ok)

	report, err := s.RunNow(context.Background())
	require.NoError(t, err, "delivery failure does not fail the run")
	assert.Equal(t, "2025-01-03", report.RunDate)
	assert.Equal(t, 1, fa.delivered)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Same(t, report, latest)
	assert.NoError(t, s.LastError())
}

func TestScheduler_RunNow_Error(t *testing.T) {
	fa := &fakeAdvisor{runErr: context.Canceled}
	s, err := New(fa, "@daily", nil)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.LastError(), context.Canceled)
	assert.Zero(t, fa.delivered)
	assert.False(t, s.Running())
}

func TestScheduler_RunNow_RejectsConcurrent(t *testing.T) {
	fa := &fakeAdvisor{block: make(chan struct{}), started: make(chan struct{})}
	s, err := New(fa, "@daily", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		done <- err
	}()

	<-fa.started
	assert.True(t, s.Running())
	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, core.ErrRunInProgress)

	close(fa.block)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
}

func TestScheduler_Seed(t *testing.T) {
	s, err := New(&fakeAdvisor{}, "@daily", nil)
	require.NoError(t, err)

	older := &core.Report{RunID: "old", GeneratedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}
	newer := &core.Report{RunID: "new", GeneratedAt: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)}

	s.Seed(nil)
	s.Seed(newer)
	s.Seed(older)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "new", latest.RunID)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(&fakeAdvisor{}, "0 0 0 1 1 *", nil)
	require.NoError(t, err)

	s.Start()
	assert.False(t, s.Next().IsZero())

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	a := &fakeAdvisor{}
	s, err := New(a, "* * * * * *", nil)
	require.NoError(t, err)

	s.Start()
	<-s.Stop().Done()
	a.mu.Lock()
	before := a.runs
	a.mu.Unlock()

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.runs > before
	}, 3*time.Second, 20*time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.NoError(t, a.ctxErrs[len(a.ctxErrs)-1])
}
