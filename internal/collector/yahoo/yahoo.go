package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/etfadvisor/internal/collector"
	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	// calendar days requested per trading day needed
	calendarBuffer = 1.5
)

// validSymbol matches symbols like VOO, BRK-B, 0700.HK, 600519.SH, ^GSPC
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("symbol cannot be empty"))
	}
	if len(symbol) > 20 {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("symbol too long: %s", symbol))
	}
	if !validSymbol.MatchString(symbol) {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}

// Options configures the Yahoo collector.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	MaxFailures       uint32
	OpenTimeout       time.Duration
}

// DefaultOptions returns conservative request settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:           defaultBaseURL,
		Timeout:           10 * time.Second,
		UserAgent:         "Mozilla/5.0",
		RequestsPerSecond: 2,
		Burst:             1,
		MaxFailures:       5,
		OpenTimeout:       60 * time.Second,
	}
}

// Yahoo implements the Yahoo Finance collector
type Yahoo struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// New creates a new Yahoo collector
func New(opts Options, logger *zap.Logger) *Yahoo {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = d.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = d.UserAgent
	}
	if opts.Burst < 1 {
		opts.Burst = d.Burst
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = d.MaxFailures
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	y := &Yahoo{
		client:    &http.Client{Timeout: opts.Timeout},
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		logger:    logger,
	}

	maxFailures := opts.MaxFailures
	y.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yahoo",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			y.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	// Shanghai listings: 510300.SH -> 510300.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// dayAfter returns midnight after end's calendar date, in end's location.
func dayAfter(end time.Time) time.Time {
	y, m, d := end.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, end.Location())
}

// historyRange returns the unix bounds requested for days trading days
// ending on end's calendar date.
func historyRange(days int, end time.Time) (period1, period2 int64) {
	next := dayAfter(end)
	calendarDays := int(float64(days) * calendarBuffer)
	return next.AddDate(0, 0, -calendarDays-1).Unix(), next.Unix()
}

// FetchCloses fetches daily closes, dropping missing, non-positive and
// non-finite values and bars dated after end.
func (y *Yahoo) FetchCloses(ctx context.Context, symbol string, days int, end time.Time) ([]float64, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("days must be positive, got %d", days))
	}

	period1, period2 := historyRange(days, end)
	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d&includePrePost=false",
		y.baseURL, y.toYahooSymbol(symbol), period1, period2)

	result, err := y.fetchChart(ctx, url, symbol)
	if err != nil {
		return nil, err
	}

	closes := extractCloses(result, end)
	if len(closes) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no valid closes for %s", symbol))
	}

	y.logger.Debug("fetched closes",
		zap.String("symbol", symbol),
		zap.Int("requested", days),
		zap.Int("received", len(closes)),
	)
	return closes, nil
}

// extractCloses pairs timestamps with closes up to the shorter of the two.
func extractCloses(r chartResult, end time.Time) []float64 {
	var quote quoteIndicator
	if len(r.Indicators.Quote) > 0 {
		quote = r.Indicators.Quote[0]
	}

	cutoff := dayAfter(end).Unix()

	n := min(len(r.Timestamp), len(quote.Close))
	closes := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		c := quote.Close[i]
		if c == nil {
			continue // Skip missing data
		}
		if r.Timestamp[i] >= cutoff {
			continue
		}
		if *c <= 0 || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		closes = append(closes, *c)
	}
	return closes
}

// FetchQuote fetches the latest quote
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.baseURL, y.toYahooSymbol(symbol))

	result, err := y.fetchChart(ctx, url, symbol)
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}

	q := &core.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		PreviousClose: prev,
		Time:          time.Unix(meta.RegularMarketTime, 0),
		Source:        "yahoo",
	}
	if prev > 0 {
		q.Change = q.Price - prev
		q.ChangePercent = q.Change / prev * 100
	}
	if !q.IsValid() {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no price for %s", symbol))
	}
	return q, nil
}

// fetchChart runs one rate-limited request through the circuit breaker.
func (y *Yahoo) fetchChart(ctx context.Context, url, symbol string) (chartResult, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return chartResult{}, core.WrapError(core.ErrCollectorTimeout, err)
	}

	out, err := y.breaker.Execute(func() (interface{}, error) {
		return y.get(ctx, url)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return chartResult{}, core.WrapError(core.ErrCollectorTimeout, err)
		}
		return chartResult{}, core.WrapError(core.ErrCollectorFailed, err)
	}

	resp := out.(*chartResponse)
	if resp.Chart.Error != nil {
		return chartResult{}, core.WrapError(core.ErrSymbolNotFound,
			fmt.Errorf("yahoo error for %s: %s", symbol, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return chartResult{}, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}
	return resp.Chart.Result[0], nil
}

func (y *Yahoo) get(ctx context.Context, url string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", y.userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// yahoo reports unknown symbols as 404 with a chart.error body
		var result chartResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Chart.Error != nil {
			return &result, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	PreviousClose      float64 `json:"previousClose"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}

var _ collector.Collector = (*Yahoo)(nil)
