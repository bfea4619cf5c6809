package broker

import (
	"context"
	"errors"
)

// ErrPositionNotFound is returned by FindPosition when the ticker has no
// open position. Callers treat it as "skip", not as a failure.
var ErrPositionNotFound = errors.New("broker: position not found")

type Broker interface {
	GetAccount(ctx context.Context) (Account, error)

	ListPositions(ctx context.Context) ([]Position, error)

	// FindPosition resolves the open position for an underlying ticker.
	// Option positions match by ticker-prefix containment against the
	// contract symbol; equities match the symbol exactly.
	FindPosition(ctx context.Context, ticker string) (*Position, error)

	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)

	GetOrder(ctx context.Context, id string) (*Order, error)

	CancelOrder(ctx context.Context, id string) error
}
