package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/newthinker/etfadvisor/internal/core"
)

const styles = `body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 1200px; margin: 0 auto; }
h1 { color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; margin-top: 30px; }
.summary-box { background: #f8f9fa; border: 2px solid #3498db; border-radius: 8px; padding: 20px; margin: 20px 0; }
.buy-recommendation { background: #fff; border-left: 4px solid #27ae60; padding: 15px; margin: 10px 0; border-radius: 4px; }
.wait-recommendation { background: #fff; border-left: 4px solid #95a5a6; padding: 15px; margin: 10px 0; border-radius: 4px; }
table { border-collapse: collapse; width: 100%; margin: 20px 0; font-size: 14px; }
th, td { border: 1px solid #ddd; padding: 10px; text-align: left; }
th { background-color: #3498db; color: white; font-weight: bold; }
tr:nth-child(even) { background-color: #f8f9fa; }
.tier-strong-buy { color: #c0392b; font-weight: bold; }
.tier-buy { color: #e67e22; font-weight: bold; }
.tier-dca-only { color: #3498db; }
.tier-wait { color: #7f8c8d; }
.score-high { color: #27ae60; font-weight: bold; }
.score-medium { color: #f39c12; }
.score-low { color: #e74c3c; }`

var tierColor = map[core.Tier]string{
	core.TierStrongBuy: "#c0392b",
	core.TierBuy:       "#e67e22",
	core.TierDCAOnly:   "#3498db",
	core.TierWait:      "#7f8c8d",
}

// Subject returns the mail subject for a run date.
func Subject(runDate string) string {
	return "ETF Advisor Daily Report - " + runDate
}

// TierClass returns the CSS class for a tier, e.g. tier-strong-buy.
func TierClass(t core.Tier) string {
	return "tier-" + strings.ReplaceAll(strings.ToLower(string(t)), "_", "-")
}

// ScoreClass buckets a buy score for colouring.
func ScoreClass(score int) string {
	switch {
	case score >= 75:
		return "score-high"
	case score >= 35:
		return "score-medium"
	default:
		return "score-low"
	}
}

// RenderHTML builds the daily report: a tier summary of today's signals
// followed by one history table per ticker.
func RenderHTML(r *core.Report) string {
	var sb strings.Builder
	sb.WriteString("<html><head><style>")
	sb.WriteString(styles)
	sb.WriteString("</style></head><body>")
	sb.WriteString("<h1>ETF Advisor Daily Report</h1>")
	fmt.Fprintf(&sb, "<p><strong>Date:</strong> %s</p>", html.EscapeString(r.RunDate))

	sb.WriteString(`<div class="summary-box">`)
	sb.WriteString(`<h2 style="margin-top: 0;">Today's Buy Recommendations</h2>`)
	groups := r.ByTier()
	for _, tier := range core.Tiers {
		signals := groups[tier]
		if len(signals) == 0 {
			continue
		}
		box := "buy-recommendation"
		if tier == core.TierWait {
			box = "wait-recommendation"
		}
		fmt.Fprintf(&sb, `<div class="%s"><strong style="color: %s; font-size: 16px;">%s</strong><br>`,
			box, tierColor[tier], tier)
		for _, s := range signals {
			fmt.Fprintf(&sb, "&bull; %s (Score: %d, Price: $%.2f)<br>",
				html.EscapeString(s.Ticker), s.BuyScore, s.CloseToday)
		}
		sb.WriteString("</div>")
	}
	sb.WriteString("</div>")

	if len(r.Failures) > 0 {
		sb.WriteString("<h2>Skipped Tickers</h2><ul>")
		for _, ticker := range r.Tickers {
			if reason, ok := r.Failures[ticker]; ok {
				fmt.Fprintf(&sb, "<li><strong>%s</strong>: %s</li>",
					html.EscapeString(ticker), html.EscapeString(reason))
			}
		}
		sb.WriteString("</ul>")
	}

	sb.WriteString(`<hr style="margin: 30px 0; border: 1px solid #ddd;">`)
	sb.WriteString("<h2>Detailed Analysis</h2>")
	for _, ticker := range r.Tickers {
		h := r.Histories[ticker]
		if len(h) == 0 {
			continue
		}
		writeHistory(&sb, ticker, h)
	}

	sb.WriteString("<hr><p><em>This is an automated report from ETF Advisor.</em></p>")
	sb.WriteString("</body></html>")
	return sb.String()
}

func writeHistory(sb *strings.Builder, ticker string, h core.SignalHistory) {
	fmt.Fprintf(sb, "<h2>%s</h2>", html.EscapeString(ticker))
	sb.WriteString("<table><tr><th>Date</th><th>Price</th><th>SMA 200</th><th>Drawdown</th>" +
		"<th>Z-Score</th><th>Buy Score</th><th>Tier</th></tr>")

	counts := make(map[core.Tier]int)
	total := 0
	for _, day := range h {
		sma := "N/A"
		if day.SMA.Valid {
			sma = fmt.Sprintf("$%.2f", day.SMA.Value)
		}
		fmt.Fprintf(sb, "<tr><td>%s</td><td>$%.2f</td><td>%s</td><td>%.2f%%</td><td>%.2f</td>"+
			`<td class="%s">%d</td><td class="%s">%s</td></tr>`,
			day.Date, day.CloseToday, sma, day.Drawdown*100, day.ZScore,
			ScoreClass(day.BuyScore), day.BuyScore, TierClass(day.Tier), day.Tier)
		counts[day.Tier]++
		total += day.BuyScore
	}
	sb.WriteString("</table>")

	var parts []string
	for _, tier := range core.Tiers {
		if n := counts[tier]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", tier, n))
		}
	}
	fmt.Fprintf(sb, "<p><strong>Average Buy Score:</strong> %d | <strong>Signals:</strong> %s</p>",
		total/len(h), strings.Join(parts, ", "))
}
