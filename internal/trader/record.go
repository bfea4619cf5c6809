package trader

import (
	"context"

	"callout/internal/types"
)

// ExecutionRecord is one audit entry for an attempted order action.
type ExecutionRecord struct {
	Intent   types.TradeIntent
	Symbol   string
	Side     string
	Type     string
	Quantity int
	Price    float64
	OrderID  string
	Status   string // submitted | filled | escalated | cancelled | failed | skipped
	Error    string
}

// Recorder persists execution records. A nil Recorder disables auditing.
type Recorder interface {
	Record(ctx context.Context, rec ExecutionRecord) error
}
