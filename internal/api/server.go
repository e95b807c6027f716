// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/etfadvisor/internal/api/middleware"
	"github.com/newthinker/etfadvisor/internal/api/response"
	"github.com/newthinker/etfadvisor/internal/collector"
	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner triggers runs and holds the latest report.
type Runner interface {
	Latest() (*core.Report, bool)
	RunNow(ctx context.Context) (*core.Report, error)
	Running() bool
	Next() time.Time
}

// Dependencies holds the components the handlers use. Quotes and
// Metrics are optional.
type Dependencies struct {
	Runner  Runner
	Quotes  collector.Collector
	Metrics *metrics.Registry
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Server represents the HTTP server for the advisor
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("api: runner is required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   deps,
	}
	s.setupRoutes(cfg)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // POST /api/run is synchronous
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	auth := middleware.APIKeyAuth(cfg.APIKey)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /api/report", auth(http.HandlerFunc(s.handleReport)))
	s.mux.Handle("GET /api/signals/{ticker}", auth(http.HandlerFunc(s.handleSignals)))
	s.mux.Handle("POST /api/run", auth(http.HandlerFunc(s.handleRun)))
	if s.deps.Quotes != nil {
		s.mux.Handle("GET /api/quote/{ticker}", auth(http.HandlerFunc(s.handleQuote)))
	}

	if s.deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Running   bool      `json:"running"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastRunAt time.Time `json:"last_run_at,omitzero"`
	NextRunAt time.Time `json:"next_run_at,omitzero"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Running:   s.deps.Runner.Running(),
		NextRunAt: s.deps.Runner.Next(),
	}
	if report, ok := s.deps.Runner.Latest(); ok {
		status.LastRunID = report.RunID
		status.LastRunAt = report.GeneratedAt
	}
	response.JSON(w, http.StatusOK, status)
}

func (s *Server) latest(w http.ResponseWriter) (*core.Report, bool) {
	report, ok := s.deps.Runner.Latest()
	if !ok {
		response.Fail(w, core.WrapError(core.ErrNoData, fmt.Errorf("no report has been generated yet")))
	}
	return report, ok
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// TickerSignals is the body of GET /api/signals/{ticker}.
type TickerSignals struct {
	Ticker  string             `json:"ticker"`
	RunID   string             `json:"run_id"`
	RunDate string             `json:"run_date"`
	Latest  core.DailySignal   `json:"latest"`
	History core.SignalHistory `json:"history"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w)
	if !ok {
		return
	}

	ticker := strings.ToUpper(r.PathValue("ticker"))
	h := report.Histories[ticker]
	latest, ok := h.Latest()
	if !ok {
		if reason, failed := report.Failures[ticker]; failed {
			response.Fail(w, core.WrapError(core.ErrNoData, fmt.Errorf("%s", reason)))
			return
		}
		response.Fail(w, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s is not tracked", ticker)))
		return
	}

	response.JSON(w, http.StatusOK, TickerSignals{
		Ticker:  ticker,
		RunID:   report.RunID,
		RunDate: report.RunDate,
		Latest:  latest,
		History: h,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Runner.RunNow(r.Context())
	if err != nil {
		s.logger.Warn("manual run failed", zap.Error(err))
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.deps.Quotes.FetchQuote(r.Context(), r.PathValue("ticker"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}
