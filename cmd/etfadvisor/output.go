package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/newthinker/etfadvisor/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatSMA(n core.NullFloat) string {
	if !n.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", n.Value)
}

// printReport writes one table per ticker followed by skipped tickers.
func printReport(w io.Writer, r *core.Report) error {
	fmt.Fprintf(w, "=== ETF Advisor Report %s ===\n", r.RunDate)
	fmt.Fprintf(w, "Run: %s\n\n", r.RunID)

	for _, ticker := range r.Tickers {
		h := r.Histories[ticker]
		if len(h) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n", ticker)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Date\tClose\tSMA\tDrawdown\tZ-Score\tScore\tTier\t")
		for _, s := range h {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f%%\t%.2f\t%d\t%s\t\n",
				s.Date, s.CloseToday, formatSMA(s.SMA), s.Drawdown*100, s.ZScore, s.BuyScore, s.Tier)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w, "Skipped:")
		for _, ticker := range r.Tickers {
			if reason, ok := r.Failures[ticker]; ok {
				fmt.Fprintf(w, "  %s: %s\n", ticker, reason)
			}
		}
	}
	return nil
}
