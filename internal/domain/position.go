package domain

import "time"

// PositionSlot is one open position. A slot is created only on a confirmed
// BUY fill and destroyed only on a confirmed SELL fill. MaxPriceSinceEntry
// is monotonically non-decreasing for the slot's lifetime.
type PositionSlot struct {
	EntryPrice         float64
	Quantity           float64
	OpenedAt           time.Time
	MaxPriceSinceEntry float64
}

// PnLPct returns the fractional profit at the given price.
func (p PositionSlot) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// ObservePrice raises MaxPriceSinceEntry when price makes a new high.
func (p *PositionSlot) ObservePrice(price float64) {
	if price > p.MaxPriceSinceEntry {
		p.MaxPriceSinceEntry = price
	}
}

// SessionStats tracks windowed counters and running realized P&L. The
// windowed fields reset on every stats rollover; RealizedUSD accumulates for
// the whole session and never resets.
type SessionStats struct {
	Signals           int64     `json:"signals"`
	Sent              int64     `json:"sent"`
	Filled            int64     `json:"filled"`
	WindowRealizedUSD float64   `json:"window_realized_usd"`
	RealizedUSD       float64   `json:"realized_usd"`
	WindowStart       time.Time `json:"window_start"`
}

// Rollover resets the windowed counters and anchors a new window at now.
// The all-time realized accumulator is untouched.
func (s *SessionStats) Rollover(now time.Time) SessionStats {
	closed := *s
	s.Signals = 0
	s.Sent = 0
	s.Filled = 0
	s.WindowRealizedUSD = 0
	s.WindowStart = now
	return closed
}

// AddRealized accrues realized P&L into both the window and the session
// accumulator.
func (s *SessionStats) AddRealized(usd float64) {
	s.WindowRealizedUSD += usd
	s.RealizedUSD += usd
}
