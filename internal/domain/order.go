package domain

import "time"

// OrderSide indicates whether this is a buy or sell. Values match the
// exchange wire format.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderRequest is a market order handed to the exchange gateway. Quantity is
// already quantized to the symbol's step size by the execution guard.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          string // always "MARKET" for the scalper
	Quantity      float64
	ClientOrderID string
}

// OrderFill is the gateway's confirmation of an executed order.
type OrderFill struct {
	OrderID       string // exchange-assigned order identifier
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Price         float64 // average fill price, 0 when not reported
	Quantity      float64
	Time          time.Time
}

// SubmitOutcome classifies the result of a guard submission.
type SubmitOutcome int

const (
	SubmitFilled SubmitOutcome = iota
	SubmitSkipped
	SubmitFailed
)

// String returns the lowercase outcome name for logging.
func (o SubmitOutcome) String() string {
	switch o {
	case SubmitFilled:
		return "filled"
	case SubmitSkipped:
		return "skipped"
	case SubmitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitResult is returned by the execution guard for every submission
// attempt. Exactly one of the three outcomes applies: a fill carries the
// executed quantity and order reference, a skip carries the reason, a
// failure carries the gateway error.
type SubmitResult struct {
	Outcome  SubmitOutcome
	Quantity float64
	OrderRef string
	Reason   string // skip reason: "cooldown", "min-notional", "no-price"
	Err      error  // gateway error when Outcome == SubmitFailed
}

// Filled reports whether the submission resulted in a confirmed fill.
func (r SubmitResult) Filled() bool { return r.Outcome == SubmitFilled }
