// Package broker defines a common abstraction for brokerage backends.
// The execution engine works against this interface so the Alpaca client
// can be swapped for a paper/mock implementation in tests.
package broker

import "time"

type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetOption AssetClass = "option"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// Position is a live position as reported by the brokerage. Positions are
// fetched fresh on every read and never cached across monitor polls.
type Position struct {
	Symbol         string     // full contract symbol for options
	AssetClass     AssetClass //
	Quantity       int        // signed by side
	CurrentPrice   float64
	AvgEntryPrice  float64
	MarketValue    float64
	UnrealizedPLPC float64 // percent, already scaled (50 = +50%)
	Side           string  // "long" or "short"
}

// Account carries the subset of account state the sizer needs.
type Account struct {
	Cash      float64
	Equity    float64
	UpdatedAt time.Time
}

// OrderRequest describes one order submission.
type OrderRequest struct {
	Symbol        string
	Quantity      int
	Side          Side
	Type          OrderType
	LimitPrice    float64 // required for limit orders
	TimeInForce   string  // "day" unless stated otherwise
	ClientOrderID string
}

// Order is the brokerage's view of a submitted order.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Quantity      int
	Side          Side
	Type          OrderType
	LimitPrice    float64
	Status        string
	SubmittedAt   time.Time
}

// Filled reports whether the order reached terminal fill status.
func (o *Order) Filled() bool {
	return o != nil && o.Status == "filled"
}
