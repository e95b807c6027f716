package notifier

import (
	"context"

	"github.com/newthinker/etfadvisor/internal/core"
)

// Notifier delivers a finished report to an outside channel
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers the report
	Send(ctx context.Context, report *core.Report) error
}
