package types

import "fmt"

// IntentKind discriminates what a parsed alert asks for.
type IntentKind string

const (
	IntentEntry IntentKind = "entry"
	IntentAdd   IntentKind = "add"
	IntentTrim  IntentKind = "trim"
	IntentExit  IntentKind = "exit"
	IntentStop  IntentKind = "stop"
)

// TradeIntent is a typed trade instruction extracted from one chat message.
// Only the fields required by Kind are populated; a malformed capture is
// dropped by the parser rather than producing a partial intent.
type TradeIntent struct {
	Kind   IntentKind `json:"kind"`
	Ticker string     `json:"ticker"`

	// Entry fields.
	Expiration  string  `json:"expiration,omitempty"`   // MM/DD
	Strike      float64 `json:"strike,omitempty"`       // contract strike
	OptionType  string  `json:"option_type,omitempty"`  // "C" or "P"
	OptionPrice float64 `json:"option_price,omitempty"` // per-contract premium

	// Add fields.
	DesiredAvgPrice float64 `json:"desired_avg_price,omitempty"`

	// Trim/Exit fields. Nil means no target, exit at market immediately.
	DesiredPLPC *float64 `json:"desired_plpc,omitempty"`

	// Stop fields.
	LimitPrice float64 `json:"limit_price,omitempty"`

	// Channel the alert came from, carried for logging and the audit trail.
	Channel string `json:"channel,omitempty"`
}

// MonitorKey identifies a background monitor slot for this intent.
// One monitor may run per ticker+kind; a newer intent replaces the older one.
func (t TradeIntent) MonitorKey() string {
	return t.Ticker + "/" + string(t.Kind)
}

// Equal reports whether two intents carry identical instructions.
// Used for within-message dedupe when overlapping patterns fire.
func (t TradeIntent) Equal(o TradeIntent) bool {
	if t.Kind != o.Kind || t.Ticker != o.Ticker ||
		t.Expiration != o.Expiration || t.Strike != o.Strike ||
		t.OptionType != o.OptionType || t.OptionPrice != o.OptionPrice ||
		t.DesiredAvgPrice != o.DesiredAvgPrice || t.LimitPrice != o.LimitPrice {
		return false
	}
	if (t.DesiredPLPC == nil) != (o.DesiredPLPC == nil) {
		return false
	}
	if t.DesiredPLPC != nil && *t.DesiredPLPC != *o.DesiredPLPC {
		return false
	}
	return true
}

func (t TradeIntent) String() string {
	switch t.Kind {
	case IntentEntry:
		return fmt.Sprintf("entry %s %s %g%s @ %g", t.Ticker, t.Expiration, t.Strike, t.OptionType, t.OptionPrice)
	case IntentAdd:
		return fmt.Sprintf("add %s target avg %.2f", t.Ticker, t.DesiredAvgPrice)
	case IntentTrim, IntentExit:
		if t.DesiredPLPC != nil {
			return fmt.Sprintf("%s %s @ %.2f%%", t.Kind, t.Ticker, *t.DesiredPLPC)
		}
		return fmt.Sprintf("%s %s at market", t.Kind, t.Ticker)
	case IntentStop:
		return fmt.Sprintf("stop %s @ %.2f", t.Ticker, t.LimitPrice)
	default:
		return fmt.Sprintf("%s %s", t.Kind, t.Ticker)
	}
}

// PLPC is a convenience constructor for the optional profit/loss target.
func PLPC(v float64) *float64 { return &v }
