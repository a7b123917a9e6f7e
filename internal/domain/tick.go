package domain

import "time"

// Tick is a single executed trade from the market data stream. Ticks are
// immutable and arrive ordered by trade time (ties possible).
type Tick struct {
	Time      time.Time // trade time reported by the exchange
	EventTime time.Time // event emission time, used for latency measurement
	Price     float64
	Qty       float64
}

// Second returns the integer epoch second this tick belongs to.
func (t Tick) Second() int64 {
	return t.Time.Unix()
}

// ConnState describes the market data stream connection state.
type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnError        ConnState = "error"
	ConnDisconnected ConnState = "disconnected"
)
