package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "etfadvisor",
	Short: "ETF Advisor - daily buy signals for index ETFs",
	Long: `ETF Advisor scores each tracked ETF every trading day from its
200-day trend, drawdown from the recent high and short-term z-score, and
maps the score to a buy tier (STRONG_BUY, BUY, DCA_ONLY, WAIT).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
