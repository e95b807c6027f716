package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/etfadvisor/internal/api"
	"github.com/newthinker/etfadvisor/internal/metrics"
	"github.com/newthinker/etfadvisor/internal/scheduler"
	"github.com/newthinker/etfadvisor/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the daily scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	a, col, err := newAdvisor(cfg, log, advisorDeps{notify: true, archive: true, metrics: reg})
	if err != nil {
		return err
	}

	sched, err := scheduler.New(a, cfg.Schedule.Cron, log.Named("scheduler"))
	if err != nil {
		return err
	}

	// Serve the last archived report until the first run completes
	if store, err := newArchive(cfg); err == nil && store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if report, err := archive.LatestReport(ctx, store, archive.ReportPrefix); err == nil {
			sched.Seed(report)
			log.Info("loaded archived report", zap.String("run_id", report.RunID))
		}
		cancel()
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		Runner:  sched,
		Quotes:  col,
		Metrics: reg,
	}, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting etfadvisor server",
		zap.Strings("tickers", cfg.Tickers),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("schedule", cfg.Schedule.Cron),
	)

	sched.Start()
	if cfg.Schedule.RunOnStart {
		go func() {
			if _, err := sched.RunNow(context.Background()); err != nil {
				log.Error("startup run failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down etfadvisor server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		log.Warn("scheduled run still in progress at shutdown")
	}
	return server.Shutdown(ctx)
}
