package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/history"
	"github.com/newthinker/etfadvisor/internal/indicator"
	"github.com/newthinker/etfadvisor/internal/score"
	"github.com/spf13/viper"
)

type Config struct {
	Tickers   []string        `mapstructure:"tickers"`
	Signal    SignalConfig    `mapstructure:"signal"`
	History   HistoryConfig   `mapstructure:"history"`
	Collector CollectorConfig `mapstructure:"collector"`
	Notifiers NotifiersConfig `mapstructure:"notifiers"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Log       LogConfig       `mapstructure:"log"`
}

// SignalConfig holds the indicator windows, score ceilings and tier thresholds.
type SignalConfig struct {
	SMADays       int     `mapstructure:"sma_days"`
	LookbackDays  int     `mapstructure:"lookback_days"`
	ZScoreWindow  int     `mapstructure:"zscore_window"`
	DrawdownMax   float64 `mapstructure:"drawdown_max"`
	ZScoreMax     float64 `mapstructure:"zscore_max"`
	TierStrongBuy int     `mapstructure:"tier_strong_buy"`
	TierBuy       int     `mapstructure:"tier_buy"`
	TierDCAOnly   int     `mapstructure:"tier_dca_only"`
}

type HistoryConfig struct {
	MinDaysNeeded int `mapstructure:"min_days_needed"`
	DaysToAnalyze int `mapstructure:"days_to_analyze"`
}

type CollectorConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls the collector circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type NotifiersConfig struct {
	Email   EmailConfig   `mapstructure:"email"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ScheduleConfig holds the daily run schedule for serve mode.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Tickers = ParseTickers(strings.Join(cfg.Tickers, ","))

	return &cfg, nil
}

// setDefaults mirrors Defaults so keys missing from the file keep their
// default values.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("tickers", d.Tickers)
	v.SetDefault("signal.sma_days", d.Signal.SMADays)
	v.SetDefault("signal.lookback_days", d.Signal.LookbackDays)
	v.SetDefault("signal.zscore_window", d.Signal.ZScoreWindow)
	v.SetDefault("signal.drawdown_max", d.Signal.DrawdownMax)
	v.SetDefault("signal.zscore_max", d.Signal.ZScoreMax)
	v.SetDefault("signal.tier_strong_buy", d.Signal.TierStrongBuy)
	v.SetDefault("signal.tier_buy", d.Signal.TierBuy)
	v.SetDefault("signal.tier_dca_only", d.Signal.TierDCAOnly)
	v.SetDefault("history.min_days_needed", d.History.MinDaysNeeded)
	v.SetDefault("history.days_to_analyze", d.History.DaysToAnalyze)
	v.SetDefault("collector.timeout", d.Collector.Timeout)
	v.SetDefault("collector.user_agent", d.Collector.UserAgent)
	v.SetDefault("collector.requests_per_second", d.Collector.RequestsPerSecond)
	v.SetDefault("collector.burst", d.Collector.Burst)
	v.SetDefault("collector.breaker.max_failures", d.Collector.Breaker.MaxFailures)
	v.SetDefault("collector.breaker.open_timeout", d.Collector.Breaker.OpenTimeout)
	v.SetDefault("notifiers.email.port", d.Notifiers.Email.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("schedule.cron", d.Schedule.Cron)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Tickers: []string{"VOO"},
		Signal: SignalConfig{
			SMADays:       200,
			LookbackDays:  126,
			ZScoreWindow:  30,
			DrawdownMax:   0.12,
			ZScoreMax:     2.5,
			TierStrongBuy: 75,
			TierBuy:       55,
			TierDCAOnly:   35,
		},
		History: HistoryConfig{
			MinDaysNeeded: 220,
			DaysToAnalyze: 10,
		},
		Collector: CollectorConfig{
			Timeout:           10 * time.Second,
			UserAgent:         "Mozilla/5.0",
			RequestsPerSecond: 2,
			Burst:             1,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 60 * time.Second,
			},
		},
		Notifiers: NotifiersConfig{
			Email: EmailConfig{Port: 587},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Schedule: ScheduleConfig{
			// weekdays after the US close
			Cron: "0 30 21 * * 1-5",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyEnv overrides tickers and signal parameters from the flat
// environment variables used by the hosted deployment. Unset or
// unparsable values leave the current setting untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TICKERS"); v != "" {
		if tickers := ParseTickers(v); len(tickers) > 0 {
			c.Tickers = tickers
		}
	}

	envInt("SMA_DAYS", &c.Signal.SMADays)
	envInt("LOOKBACK_HIGH_DAYS", &c.Signal.LookbackDays)
	envInt("ZSCORE_WINDOW", &c.Signal.ZScoreWindow)
	envFloat("DRAWDOWN_MAX", &c.Signal.DrawdownMax)
	envFloat("ZSCORE_MAX", &c.Signal.ZScoreMax)
	envInt("TIER_STRONG_BUY", &c.Signal.TierStrongBuy)
	envInt("TIER_BUY", &c.Signal.TierBuy)
	envInt("TIER_DCA_ONLY", &c.Signal.TierDCAOnly)
}

func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = n
	}
}

func envFloat(key string, dst *float64) {
	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		*dst = f
	}
}

// ParseTickers splits a comma-separated list, trimming and upper-casing
// each symbol and dropping empties.
func ParseTickers(s string) []string {
	var tickers []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// IndicatorParams returns the indicator windows.
func (c *Config) IndicatorParams() indicator.Params {
	return indicator.Params{
		SMADays:      c.Signal.SMADays,
		LookbackDays: c.Signal.LookbackDays,
		ZScoreWindow: c.Signal.ZScoreWindow,
	}
}

// ScoreParams returns the classifier parameters.
func (c *Config) ScoreParams() score.Params {
	return score.Params{
		DrawdownMax:   c.Signal.DrawdownMax,
		ZScoreMax:     c.Signal.ZScoreMax,
		TierStrongBuy: c.Signal.TierStrongBuy,
		TierBuy:       c.Signal.TierBuy,
		TierDCAOnly:   c.Signal.TierDCAOnly,
	}
}

// HistoryOptions returns the rebuild bounds.
func (c *Config) HistoryOptions() history.Options {
	return history.Options{
		MinDaysNeeded: c.History.MinDaysNeeded,
		DaysToAnalyze: c.History.DaysToAnalyze,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one ticker is required"))
	}

	// Signal validation
	s := c.Signal
	if s.SMADays < 1 || s.LookbackDays < 1 || s.ZScoreWindow < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("indicator windows must be positive, got sma=%d lookback=%d zscore=%d",
				s.SMADays, s.LookbackDays, s.ZScoreWindow))
	}
	if s.DrawdownMax <= 0 || s.ZScoreMax <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("drawdown_max and zscore_max must be positive, got %f and %f", s.DrawdownMax, s.ZScoreMax))
	}
	if s.TierStrongBuy < s.TierBuy || s.TierBuy < s.TierDCAOnly {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("tier thresholds must satisfy strong_buy >= buy >= dca_only, got %d/%d/%d",
				s.TierStrongBuy, s.TierBuy, s.TierDCAOnly))
	}

	if err := c.HistoryOptions().Validate(); err != nil {
		return err
	}

	// Notifier validation
	if e := c.Notifiers.Email; e.Enabled && (e.Host == "" || e.From == "" || len(e.To) == 0) {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("email notifier requires host, from and to"))
	}
	if w := c.Notifiers.Webhook; w.Enabled && w.URL == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook notifier requires url"))
	}

	switch c.Archive.Type {
	case "":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path required for localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive s3 bucket required"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	return nil
}
