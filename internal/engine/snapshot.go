package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/signal"
)

// SlotView is the externally visible form of an open slot, with live
// unrealized figures computed at the snapshot price.
type SlotView struct {
	EntryPrice         float64   `json:"entry_price"`
	Quantity           float64   `json:"quantity"`
	OpenedAt           time.Time `json:"opened_at"`
	MaxPriceSinceEntry float64   `json:"max_price_since_entry"`
	PnLPct             float64   `json:"pnl_pct"`
	UnrealizedUSD      float64   `json:"unrealized_usd"`
}

// Snapshot is a consistent point-in-time copy of the engine state, served
// by the status API and published to Redis.
type Snapshot struct {
	Symbol        string                    `json:"symbol"`
	Conn          domain.ConnState          `json:"conn_state"`
	LastPrice     float64                   `json:"last_price"`
	TickLatencyMs int64                     `json:"tick_latency_ms"`
	Bars          []domain.SecondBar        `json:"bars"`
	Eval          signal.Evaluation         `json:"eval"`
	Slots         []SlotView                `json:"slots"`
	Stats         domain.SessionStats       `json:"stats"`
	Filters       domain.SymbolFilters      `json:"filters"`
	Balances      map[string]domain.Balance `json:"balances"`
	At            time.Time                 `json:"at"`
}

// Snapshot returns a copy of the current engine state. Safe to call from
// any goroutine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		Symbol:    e.cfg.Symbol,
		Conn:      e.conn,
		LastPrice: e.lastPrice,
		Eval:      e.lastEval,
		Stats:     e.stats,
		Filters:   e.symFilters,
		At:        e.now(),
	}
	if e.latencyKnown {
		s.TickLatencyMs = e.lastTickLatency.Milliseconds()
	}

	s.Bars = append([]domain.SecondBar(nil), e.bars.Window(e.bars.Len())...)

	s.Slots = make([]SlotView, 0, len(e.slots))
	for _, slot := range e.slots {
		pnl := slot.PnLPct(e.lastPrice)
		s.Slots = append(s.Slots, SlotView{
			EntryPrice:         slot.EntryPrice,
			Quantity:           slot.Quantity,
			OpenedAt:           slot.OpenedAt,
			MaxPriceSinceEntry: slot.MaxPriceSinceEntry,
			PnLPct:             pnl,
			UnrealizedUSD:      (e.lastPrice - slot.EntryPrice) * slot.Quantity,
		})
	}

	s.Balances = make(map[string]domain.Balance, len(e.acct))
	for k, v := range e.acct {
		s.Balances[k] = v
	}
	return s
}

// publishSnapshot serializes the current state and hands it to the
// configured publisher. Publish errors are logged, never fatal.
func (e *Engine) publishSnapshot(ctx context.Context) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(e.Snapshot())
	if err != nil {
		e.logger.Warn("snapshot marshal failed", slog.String("error", err.Error()))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := e.publisher.PublishSnapshot(pctx, payload); err != nil {
		e.logger.Warn("snapshot publish failed", slog.String("error", err.Error()))
	}
}
