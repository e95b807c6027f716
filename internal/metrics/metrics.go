package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run outcomes used as the status label of runs_total.
const (
	RunOK      = "ok"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Advisor metrics
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	tickersTotal    *prometheus.CounterVec
	signalsEmitted  *prometheus.CounterVec
	daysSkipped     prometheus.Counter
	buyScore        *prometheus.GaugeVec
	deliveriesTotal *prometheus.CounterVec
	lastRunTime     prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etfadvisor_runs_total",
			Help: "Total number of advisor runs by outcome",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etfadvisor_run_duration_seconds",
			Help:    "Advisor run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
	r.tickersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etfadvisor_tickers_processed_total",
			Help: "Total number of tickers processed by outcome",
		},
		[]string{"status"},
	)
	r.signalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etfadvisor_signals_emitted_total",
			Help: "Total number of daily signals emitted by tier",
		},
		[]string{"tier"},
	)
	r.daysSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "etfadvisor_days_skipped_total",
			Help: "Total number of history days skipped after an evaluation failure",
		},
	)
	r.buyScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etfadvisor_buy_score",
			Help: "Latest buy score per ticker",
		},
		[]string{"ticker"},
	)
	r.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etfadvisor_deliveries_total",
			Help: "Total number of report deliveries by target and outcome",
		},
		[]string{"target", "status"},
	)
	r.lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "etfadvisor_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.tickersTotal)
	reg.MustRegister(r.signalsEmitted)
	reg.MustRegister(r.daysSkipped)
	reg.MustRegister(r.buyScore)
	reg.MustRegister(r.deliveriesTotal)
	reg.MustRegister(r.lastRunTime)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRun records a finished run. finishedAt is a unix timestamp.
func (r *Registry) RecordRun(status string, duration float64, finishedAt float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
	r.lastRunTime.Set(finishedAt)
}

// RecordTicker records one ticker outcome, "ok" or "failed".
func (r *Registry) RecordTicker(status string) {
	r.tickersTotal.WithLabelValues(status).Inc()
}

// RecordSignal records an emitted daily signal.
func (r *Registry) RecordSignal(tier string) {
	r.signalsEmitted.WithLabelValues(tier).Inc()
}

// RecordSkippedDays adds n skipped history days.
func (r *Registry) RecordSkippedDays(n int) {
	if n > 0 {
		r.daysSkipped.Add(float64(n))
	}
}

// SetBuyScore sets the latest buy score of a ticker.
func (r *Registry) SetBuyScore(ticker string, score int) {
	r.buyScore.WithLabelValues(ticker).Set(float64(score))
}

// RecordDelivery records a notifier or archive delivery.
func (r *Registry) RecordDelivery(target, status string) {
	r.deliveriesTotal.WithLabelValues(target, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
