package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [ticker]",
	Short: "Show the latest quote of a ticker",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Collector.Timeout+5*time.Second)
	defer cancel()

	q, err := newCollector(cfg, log).FetchQuote(ctx, strings.ToUpper(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("%s  %.2f  %+.2f (%+.2f%%)\n", q.Symbol, q.Price, q.Change, q.ChangePercent)
	fmt.Printf("  Previous close: %.2f\n", q.PreviousClose)
	fmt.Printf("  As of:          %s\n", q.Time.Local().Format("2006-01-02 15:04:05"))
	return nil
}
