package engine

import (
	"strconv"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

// ExitParams are the fixed thresholds of the exit policy. All *Pct values
// are fractions of the entry (or maximum) price.
type ExitParams struct {
	TakeProfitPct float64
	StopLossPct   float64

	// Breakeven lock: once price has touched Entry*(1+BreakevenArmPct),
	// the stop rises to Entry*(1+BreakevenLockPct) and stays armed.
	BreakevenArmPct  float64
	BreakevenLockPct float64

	// Trailing stop: once the gain from entry to the running maximum
	// reaches TrailArmPct, the stop follows at Max*(1-TrailPct).
	TrailArmPct float64
	TrailPct    float64

	Timeout time.Duration
}

// ExitDecision is the outcome of one exit-policy pass over a single slot.
type ExitDecision struct {
	Exit   bool
	Reason string

	// PnLPct is the unrealized move at the evaluated close.
	PnLPct float64
	// DynamicStop is the higher of the armed breakeven and trailing stops,
	// zero when neither is armed. It never moves down between passes
	// because the running maximum never moves down.
	DynamicStop float64
}

// EvaluateExit applies the exit policy to one open slot at the given close.
// Checks run in fixed precedence: take-profit, stop-loss, dynamic stop,
// timeout. The caller must have already folded close into the slot's
// running maximum.
func EvaluateExit(slot domain.PositionSlot, close float64, now time.Time, p ExitParams) ExitDecision {
	d := ExitDecision{PnLPct: slot.PnLPct(close)}

	if slot.MaxPriceSinceEntry >= slot.EntryPrice*(1+p.BreakevenArmPct) {
		d.DynamicStop = slot.EntryPrice * (1 + p.BreakevenLockPct)
	}
	if slot.EntryPrice > 0 {
		gain := (slot.MaxPriceSinceEntry - slot.EntryPrice) / slot.EntryPrice
		if gain >= p.TrailArmPct {
			if trail := slot.MaxPriceSinceEntry * (1 - p.TrailPct); trail > d.DynamicStop {
				d.DynamicStop = trail
			}
		}
	}

	switch {
	case d.PnLPct >= p.TakeProfitPct:
		d.Exit, d.Reason = true, "take_profit"
	case d.PnLPct <= -p.StopLossPct:
		d.Exit, d.Reason = true, "stop_loss"
	case d.DynamicStop > 0 && close <= d.DynamicStop:
		d.Exit, d.Reason = true, "dynamic_stop"
	case p.Timeout > 0 && now.Sub(slot.OpenedAt) >= p.Timeout:
		d.Exit, d.Reason = true, "timeout"
	}
	return d
}

func formatPrice(p float64) string { return strconv.FormatFloat(p, 'f', -1, 64) }
func formatQty(q float64) string   { return strconv.FormatFloat(q, 'f', -1, 64) }
