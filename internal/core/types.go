package core

import (
	"encoding/json"
	"time"
)

// DateLayout is the ISO calendar date format used for signal dates.
const DateLayout = "2006-01-02"

// NullFloat is a float64 that may be absent.
type NullFloat struct {
	Value float64
	Valid bool
}

// Some returns a present NullFloat.
func Some(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// None returns an absent NullFloat.
func None() NullFloat {
	return NullFloat{}
}

// MarshalJSON encodes an absent value as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON decodes null as an absent value.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// Tier is a discrete buy recommendation bucket
type Tier string

const (
	TierStrongBuy Tier = "STRONG_BUY"
	TierBuy       Tier = "BUY"
	TierDCAOnly   Tier = "DCA_ONLY"
	TierWait      Tier = "WAIT"
)

// Tiers lists all tiers from highest to lowest.
var Tiers = []Tier{TierStrongBuy, TierBuy, TierDCAOnly, TierWait}

// Rank orders tiers: WAIT=0 < DCA_ONLY=1 < BUY=2 < STRONG_BUY=3.
// Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierStrongBuy:
		return 3
	case TierBuy:
		return 2
	case TierDCAOnly:
		return 1
	case TierWait:
		return 0
	default:
		return -1
	}
}

// IndicatorSet describes the most recent day of an evaluation window.
type IndicatorSet struct {
	CloseToday float64   `json:"close"`
	SMA        NullFloat `json:"sma"`
	Drawdown   float64   `json:"drawdown"`
	ZScore     float64   `json:"zscore"`
}

// ScoreResult is the classifier output for one IndicatorSet.
type ScoreResult struct {
	BuyScore      int     `json:"buy_score"`
	Tier          Tier    `json:"tier"`
	TrendScore    float64 `json:"trend_score"`
	DrawdownScore float64 `json:"drawdown_score"`
	ZScoreScore   float64 `json:"zscore_score"`
}

// DailySignal is one evaluated day for one ticker.
type DailySignal struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"`
	IndicatorSet
	ScoreResult
}

// SignalHistory is ordered oldest to newest.
type SignalHistory []DailySignal

// Latest returns the newest entry.
func (h SignalHistory) Latest() (DailySignal, bool) {
	if len(h) == 0 {
		return DailySignal{}, false
	}
	return h[len(h)-1], true
}

// Quote represents a latest price quote
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Time          time.Time `json:"time"`
	Source        string    `json:"source"`
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// Report is the outcome of one advisor run across all tickers.
type Report struct {
	RunID       string                   `json:"run_id"`
	RunDate     string                   `json:"run_date"`
	Tickers     []string                 `json:"tickers"`
	Histories   map[string]SignalHistory `json:"ticker_history"`
	Failures    map[string]string        `json:"failures,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Today returns the latest signal of each ticker, in ticker order.
func (r *Report) Today() []DailySignal {
	var today []DailySignal
	for _, ticker := range r.Tickers {
		if sig, ok := r.Histories[ticker].Latest(); ok {
			today = append(today, sig)
		}
	}
	return today
}

// ByTier groups today's signals by tier.
func (r *Report) ByTier() map[Tier][]DailySignal {
	groups := make(map[Tier][]DailySignal)
	for _, sig := range r.Today() {
		groups[sig.Tier] = append(groups[sig.Tier], sig)
	}
	return groups
}

// Succeeded reports how many tickers produced at least one signal.
func (r *Report) Succeeded() int {
	n := 0
	for _, ticker := range r.Tickers {
		if len(r.Histories[ticker]) > 0 {
			n++
		}
	}
	return n
}
