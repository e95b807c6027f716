package main

import (
	"fmt"
	"time"

	"github.com/newthinker/etfadvisor/internal/advisor"
	"github.com/newthinker/etfadvisor/internal/collector/yahoo"
	"github.com/newthinker/etfadvisor/internal/config"
	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/history"
	"github.com/newthinker/etfadvisor/internal/logger"
	"github.com/newthinker/etfadvisor/internal/metrics"
	"github.com/newthinker/etfadvisor/internal/notifier"
	"github.com/newthinker/etfadvisor/internal/notifier/email"
	"github.com/newthinker/etfadvisor/internal/notifier/webhook"
	"github.com/newthinker/etfadvisor/internal/score"
	"github.com/newthinker/etfadvisor/internal/storage/archive"
	"go.uber.org/zap"
)

// loadConfig reads the config file (or defaults), applies the flat
// environment overrides and validates the result.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Debug("no config file specified, using defaults")
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	return logger.NewWithLevel(debug, level)
}

// bootstrap loads config and builds the configured logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(logger.Must(debug))
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newCollector(cfg *config.Config, log *zap.Logger) *yahoo.Yahoo {
	c := cfg.Collector
	return yahoo.New(yahoo.Options{
		Timeout:           c.Timeout,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		MaxFailures:       c.Breaker.MaxFailures,
		OpenTimeout:       c.Breaker.OpenTimeout,
	}, log.Named("yahoo"))
}

func newNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()

	if e := cfg.Notifiers.Email; e.Enabled {
		n, err := email.New(email.Config{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			To:       e.To,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}

	if w := cfg.Notifiers.Webhook; w.Enabled {
		n, err := webhook.New(w.URL, w.Headers)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func newArchive(cfg *config.Config) (archive.Storage, error) {
	a := cfg.Archive
	return archive.New(a.Type, a.Path, archive.S3Config{
		Bucket:    a.S3.Bucket,
		Endpoint:  a.S3.Endpoint,
		Region:    a.S3.Region,
		AccessKey: a.S3.AccessKey,
		SecretKey: a.S3.SecretKey,
		Prefix:    a.S3.Prefix,
	})
}

// advisorDeps selects which delivery targets a command wires in.
type advisorDeps struct {
	notify  bool
	archive bool
	metrics *metrics.Registry
}

func newAdvisor(cfg *config.Config, log *zap.Logger, deps advisorDeps) (*advisor.Advisor, *yahoo.Yahoo, error) {
	rebuilder := history.NewRebuilder(
		cfg.IndicatorParams(),
		score.NewClassifier(cfg.ScoreParams()),
		log.Named("history"),
	)
	col := newCollector(cfg, log)

	opts := advisor.Options{
		Tickers: cfg.Tickers,
		History: cfg.HistoryOptions(),
		Metrics: deps.metrics,
		Logger:  log.Named("advisor"),
	}
	if deps.notify {
		reg, err := newNotifiers(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating notifiers: %w", err)
		}
		opts.Notifiers = reg
	}
	if deps.archive {
		store, err := newArchive(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating archive: %w", err)
		}
		opts.Archive = store
	}

	a, err := advisor.New(col, rebuilder, opts)
	if err != nil {
		return nil, nil, err
	}
	return a, col, nil
}

// parseRunDate parses YYYY-MM-DD in local time; empty means today.
func parseRunDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation(core.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	return d, nil
}
