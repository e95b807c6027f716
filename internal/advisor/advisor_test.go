package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/history"
	"github.com/newthinker/etfadvisor/internal/indicator"
	"github.com/newthinker/etfadvisor/internal/metrics"
	"github.com/newthinker/etfadvisor/internal/notifier"
	"github.com/newthinker/etfadvisor/internal/score"
	"github.com/newthinker/etfadvisor/internal/storage/archive"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runDate = time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)

type fakeCollector struct {
	mu     sync.Mutex
	closes map[string][]float64
	errs   map[string]error
	asked  map[string]int
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		closes: make(map[string][]float64),
		errs:   make(map[string]error),
		asked:  make(map[string]int),
	}
}

func (f *fakeCollector) Name() string { return "fake" }

func (f *fakeCollector) FetchCloses(ctx context.Context, symbol string, days int, end time.Time) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked[symbol] = days
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	prices := f.closes[symbol]
	if len(prices) > days {
		prices = prices[len(prices)-days:]
	}
	return prices, nil
}

func (f *fakeCollector) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	return nil, core.ErrNoData
}

type recordingNotifier struct {
	name    string
	fail    bool
	reports []*core.Report
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Send(ctx context.Context, r *core.Report) error {
	n.reports = append(n.reports, r)
	if n.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func rising(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	return prices
}

func newRebuilder() *history.Rebuilder {
	return history.NewRebuilder(indicator.DefaultParams(), score.NewClassifier(score.DefaultParams()), nil)
}

func newAdvisor(t *testing.T, c *fakeCollector, opts Options) *Advisor {
	t.Helper()
	if opts.History == (history.Options{}) {
		opts.History = history.DefaultOptions()
	}
	a, err := New(c, newRebuilder(), opts)
	require.NoError(t, err)
	a.now = func() time.Time { return runDate.Add(22 * time.Hour) }
	return a
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, newRebuilder(), Options{Tickers: []string{"VOO"}, History: history.DefaultOptions()})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(newFakeCollector(), newRebuilder(), Options{History: history.DefaultOptions()})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(newFakeCollector(), newRebuilder(), Options{Tickers: []string{"VOO"}, History: history.Options{MinDaysNeeded: 0}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestAdvisor_Run(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(400)
	c.closes["SHORT"] = rising(100)
	c.errs["BAD"] = core.WrapError(core.ErrSymbolNotFound, errors.New("delisted"))

	a := newAdvisor(t, c, Options{Tickers: []string{"VOO", "SHORT", "BAD"}})
	report, err := a.Run(context.Background(), runDate)
	require.NoError(t, err)

	id, err := uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, "2025-01-03", report.RunDate)
	assert.Equal(t, []string{"VOO", "SHORT", "BAD"}, report.Tickers)
	assert.Equal(t, runDate.Add(22*time.Hour), report.GeneratedAt)

	// min + days requested
	assert.Equal(t, 230, c.asked["VOO"])

	voo := report.Histories["VOO"]
	require.Len(t, voo, 10)
	assert.Equal(t, "2025-01-03", voo[len(voo)-1].Date)
	assert.Equal(t, rising(400)[399], voo[len(voo)-1].CloseToday)

	assert.NotContains(t, report.Histories, "SHORT")
	assert.Contains(t, report.Failures["SHORT"], "INSUFFICIENT_DATA")
	assert.Contains(t, report.Failures["BAD"], "SYMBOL_NOT_FOUND")
	assert.Equal(t, 1, report.Succeeded())

	today := report.Today()
	require.Len(t, today, 1)
	assert.Equal(t, "VOO", today[0].Ticker)
}

func TestAdvisor_Run_ExactlyMinimumIsFailure(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(220)

	a := newAdvisor(t, c, Options{Tickers: []string{"VOO"}})
	report, err := a.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Empty(t, report.Histories)
	assert.Contains(t, report.Failures["VOO"], "no evaluable days")
}

func TestAdvisor_Run_MatchesRebuilder(t *testing.T) {
	c := newFakeCollector()
	c.closes["QQQ"] = rising(230)

	opts := history.Options{MinDaysNeeded: 220, DaysToAnalyze: 10}
	a := newAdvisor(t, c, Options{Tickers: []string{"QQQ"}, History: opts})
	report, err := a.Run(context.Background(), runDate)
	require.NoError(t, err)

	want := newRebuilder().Rebuild("QQQ", rising(230), runDate, opts)
	assert.Equal(t, want, report.Histories["QQQ"])
}

func TestAdvisor_Analyze(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(300)

	a := newAdvisor(t, c, Options{Tickers: []string{"VOO"}})
	report, err := a.Analyze(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 220, c.asked["VOO"])
	h := report.Histories["VOO"]
	require.Len(t, h, 1)
	assert.Equal(t, "2025-01-03", h[0].Date)

	want, err := newRebuilder().Current("VOO", rising(300)[80:], runDate)
	require.NoError(t, err)
	assert.Equal(t, want, h[0])
}

func TestAdvisor_Run_Canceled(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(300)

	a := newAdvisor(t, c, Options{Tickers: []string{"VOO"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := a.Run(ctx, runDate)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Histories)
	assert.Zero(t, c.asked["VOO"])
}

func TestAdvisor_Run_RecordsMetrics(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(300)
	c.errs["BAD"] = errors.New("boom")

	reg := metrics.NewRegistry()
	a := newAdvisor(t, c, Options{Tickers: []string{"VOO", "BAD"}, Metrics: reg})
	_, err := a.Run(context.Background(), runDate)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "etfadvisor_tickers_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "ok and failed series")

	n, err = testutil.GatherAndCount(reg, "etfadvisor_buy_score")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(reg, "etfadvisor_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdvisor_Deliver(t *testing.T) {
	c := newFakeCollector()
	c.closes["VOO"] = rising(300)

	ok := &recordingNotifier{name: "webhook"}
	bad := &recordingNotifier{name: "email", fail: true}
	reg := notifier.NewRegistry()
	require.NoError(t, reg.Register(ok))
	require.NoError(t, reg.Register(bad))

	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	a := newAdvisor(t, c, Options{Tickers: []string{"VOO"}, Notifiers: reg, Archive: store})
	report, err := a.Run(context.Background(), runDate)
	require.NoError(t, err)

	err = a.Deliver(context.Background(), report)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotifierFailed)
	assert.ErrorContains(t, err, "email")

	// healthy targets still receive the report
	require.Len(t, ok.reports, 1)
	assert.Same(t, report, ok.reports[0])

	key, err := archive.ReportKey(report.RunDate, report.RunID)
	require.NoError(t, err)
	saved, err := archive.LoadReport(context.Background(), store, key)
	require.NoError(t, err)
	assert.Equal(t, report.Histories, saved.Histories)
}

func TestAdvisor_Deliver_NoTargets(t *testing.T) {
	a := newAdvisor(t, newFakeCollector(), Options{Tickers: []string{"VOO"}})
	assert.NoError(t, a.Deliver(context.Background(), &core.Report{RunID: "x", RunDate: "2025-01-03"}))
}
