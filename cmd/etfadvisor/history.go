package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/etfadvisor/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyTickers string
	historyDate    string
	historyDays    int
	historyMinDays int
	historyJSON    bool
	historyNotify  bool
	historyArchive bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Rebuild the recent signal history of every ticker",
	Long: `Rebuild the buy signal of each of the last N trading days for every
ticker, print the report and optionally mail and archive it.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyTickers, "tickers", "", "comma-separated tickers (overrides config)")
	historyCmd.Flags().StringVar(&historyDate, "date", "", "run date YYYY-MM-DD (default today)")
	historyCmd.Flags().IntVar(&historyDays, "days", 0, "days to analyze (overrides config)")
	historyCmd.Flags().IntVar(&historyMinDays, "min-days", 0, "minimum history per evaluation (overrides config)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print the report as JSON")
	historyCmd.Flags().BoolVar(&historyNotify, "notify", false, "send the report through configured notifiers")
	historyCmd.Flags().BoolVar(&historyArchive, "archive", false, "write the report to the configured archive")

	rootCmd.AddCommand(historyCmd)
}

func applyTickerFlag(cfg *config.Config, flag string) {
	if tickers := config.ParseTickers(flag); len(tickers) > 0 {
		cfg.Tickers = tickers
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	applyTickerFlag(cfg, historyTickers)
	if historyDays > 0 {
		cfg.History.DaysToAnalyze = historyDays
	}
	if historyMinDays > 0 {
		cfg.History.MinDaysNeeded = historyMinDays
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runDate, err := parseRunDate(historyDate)
	if err != nil {
		return err
	}

	a, _, err := newAdvisor(cfg, log, advisorDeps{notify: historyNotify, archive: historyArchive})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.Run(ctx, runDate)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if historyJSON {
		err = writeJSON(os.Stdout, report)
	} else {
		err = printReport(os.Stdout, report)
	}
	if err != nil {
		return err
	}

	if historyNotify || historyArchive {
		if err := a.Deliver(ctx, report); err != nil {
			log.Error("delivery incomplete", zap.Error(err))
			return err
		}
	}

	if report.Succeeded() == 0 {
		return fmt.Errorf("no ticker could be analyzed")
	}
	return nil
}
