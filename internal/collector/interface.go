package collector

import (
	"context"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
)

// Collector defines the interface for market data sources
type Collector interface {
	// Name returns the source identifier
	Name() string

	// FetchCloses returns daily closes covering at least the last days
	// trading days up to and including end, oldest first. Every returned
	// price is positive and finite.
	FetchCloses(ctx context.Context, symbol string, days int, end time.Time) ([]float64, error)

	// FetchQuote returns the latest quote
	FetchQuote(ctx context.Context, symbol string) (*core.Quote, error)
}
