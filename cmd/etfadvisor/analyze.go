package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	analyzeTickers string
	analyzeDate    string
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print today's buy signal for every ticker",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTickers, "tickers", "", "comma-separated tickers (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "run date YYYY-MM-DD (default today)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the signals as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	applyTickerFlag(cfg, analyzeTickers)
	runDate, err := parseRunDate(analyzeDate)
	if err != nil {
		return err
	}

	a, _, err := newAdvisor(cfg, log, advisorDeps{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.Analyze(ctx, runDate)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	today := report.Today()
	if analyzeJSON {
		return writeJSON(os.Stdout, today)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tCLOSE\tSMA\tDRAWDOWN\tZ-SCORE\tSCORE\tTIER")
	for _, s := range today {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f%%\t%.2f\t%d\t%s\n",
			s.Ticker, s.CloseToday, formatSMA(s.SMA), s.Drawdown*100, s.ZScore, s.BuyScore, s.Tier)
	}
	for _, ticker := range report.Tickers {
		if reason, ok := report.Failures[ticker]; ok {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t%s\n", ticker, reason)
		}
	}
	return tw.Flush()
}
