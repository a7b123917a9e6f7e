// Package engine owns the position lifecycle. A single goroutine consumes
// ticks and periodic updates, runs one evaluation pass per tick through the
// signal evaluator and the exit policy, and is the only writer of position
// state. External readers get consistent snapshots.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/executor"
	"github.com/amvega/scalpbot/internal/market"
	"github.com/amvega/scalpbot/internal/signal"
)

var (
	metricOpenSlots = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scalpbot_open_slots",
		Help: "Currently open position slots",
	})
	metricEntrySignals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scalpbot_entry_signals_total",
		Help: "Evaluation passes that recommended an entry",
	})
	metricRealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scalpbot_realized_pnl_usd",
		Help: "Session realized profit and loss in quote currency",
	})
)

func init() {
	prometheus.MustRegister(metricOpenSlots, metricEntrySignals, metricRealizedPnL)
}

// Alerter delivers operator notifications. The engine treats it as
// fire-and-forget and never blocks on delivery.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the engine's lifecycle parameters.
type Config struct {
	Symbol     string
	QuoteAsset string

	MaxSlots  int
	WindowSec int

	BudgetUSD      float64
	BudgetFraction float64

	Exits ExitParams

	StatsWindow   time.Duration
	SnapshotEvery time.Duration
}

// Engine is the position lifecycle state machine. Each slot cycles between
// FLAT and OPEN; slots are created only on confirmed BUY fills and destroyed
// only on confirmed SELL fills.
type Engine struct {
	cfg       Config
	bars      *market.Aggregator
	eval      *signal.Evaluator
	guard     *executor.Guard
	alerter   Alerter
	publisher domain.SnapshotPublisher
	logger    *slog.Logger

	ticks    <-chan domain.Tick
	conns    <-chan domain.ConnState
	balances <-chan domain.BalanceUpdate
	filters  <-chan domain.FilterUpdate

	// mu guards all state below. The Run goroutine is the only writer; it
	// never holds mu across a gateway call.
	mu              sync.RWMutex
	slots           []domain.PositionSlot
	stats           domain.SessionStats
	symFilters      domain.SymbolFilters
	acct            map[string]domain.Balance
	lastEval        signal.Evaluation
	lastTickLatency time.Duration
	latencyKnown    bool
	conn            domain.ConnState
	lastPrice       float64

	// now is swappable for tests.
	now func() time.Time
}

// Inputs bundles the channels feeding the engine loop.
type Inputs struct {
	Ticks    <-chan domain.Tick
	Conns    <-chan domain.ConnState
	Balances <-chan domain.BalanceUpdate
	Filters  <-chan domain.FilterUpdate
}

// New creates an Engine. alerter and publisher may be nil.
func New(cfg Config, bars *market.Aggregator, eval *signal.Evaluator, guard *executor.Guard, in Inputs, alerter Alerter, publisher domain.SnapshotPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		bars:      bars,
		eval:      eval,
		guard:     guard,
		alerter:   alerter,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "engine")),
		ticks:     in.Ticks,
		conns:     in.Conns,
		balances:  in.Balances,
		filters:   in.Filters,
		acct:      make(map[string]domain.Balance),
		conn:      domain.ConnDisconnected,
		now:       time.Now,
		stats:     domain.SessionStats{WindowStart: time.Now()},
	}
}

// Run processes ticks and periodic updates until ctx is cancelled. Each tick
// triggers exactly one evaluation pass; the next tick is not evaluated until
// the pass, including any order submission, has completed.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.String("symbol", e.cfg.Symbol),
		slog.Int("max_slots", e.cfg.MaxSlots),
	)
	defer e.logger.Info("engine stopped")

	statsTicker := time.NewTicker(e.cfg.StatsWindow)
	defer statsTicker.Stop()

	snapEvery := e.cfg.SnapshotEvery
	if snapEvery <= 0 {
		snapEvery = time.Second
	}
	snapTicker := time.NewTicker(snapEvery)
	defer snapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t, ok := <-e.ticks:
			if !ok {
				return nil
			}
			e.onTick(ctx, t)

		case cs := <-e.conns:
			e.onConnState(ctx, cs)

		case bu := <-e.balances:
			e.mu.Lock()
			e.acct = bu.Balances
			e.mu.Unlock()

		case fu := <-e.filters:
			e.mu.Lock()
			e.symFilters = fu.Filters
			e.mu.Unlock()

		case <-statsTicker.C:
			e.rolloverStats()

		case <-snapTicker.C:
			e.publishSnapshot(ctx)
		}
	}
}

// onTick folds the tick into the bar window and runs one evaluation pass:
// entry decision first, then the exit policy for every open slot.
func (e *Engine) onTick(ctx context.Context, t domain.Tick) {
	now := e.now()

	e.mu.Lock()
	e.bars.Ingest(t)
	e.lastPrice = t.Price
	if !t.EventTime.IsZero() {
		e.lastTickLatency = now.Sub(t.EventTime)
		e.latencyKnown = true
	}

	last, ok := e.bars.Last()
	if !ok {
		e.mu.Unlock()
		return
	}
	// The evaluator only looks back WindowSec bars plus the one forming now.
	ev := e.eval.Evaluate(e.bars.Window(e.cfg.WindowSec+1), e.lastTickLatency, e.latencyKnown, now)
	e.lastEval = ev
	if ev.ShouldEnter() {
		e.stats.Signals++
		metricEntrySignals.Inc()
	}
	enter := ev.ShouldEnter() && len(e.slots) < e.cfg.MaxSlots
	filters := e.symFilters
	freeQuote := e.acct[e.cfg.QuoteAsset].Free
	e.mu.Unlock()

	if enter {
		e.tryEnter(ctx, last.Close, freeQuote, filters, now)
	}
	e.evaluateExits(ctx, last.Close, filters, now)
}

// tryEnter submits a budget-sized BUY and opens a slot on a confirmed fill.
// Skips and failures leave the state FLAT; the next tick re-evaluates.
func (e *Engine) tryEnter(ctx context.Context, price, freeQuote float64, filters domain.SymbolFilters, now time.Time) {
	res := e.guard.Submit(ctx, executor.SubmitParams{
		Side:           domain.OrderSideBuy,
		Price:          price,
		BudgetUSD:      e.cfg.BudgetUSD,
		BudgetFraction: e.cfg.BudgetFraction,
		FreeQuote:      freeQuote,
		Filters:        filters,
	})
	switch res.Outcome {
	case domain.SubmitFilled:
		slot := domain.PositionSlot{
			EntryPrice:         price,
			Quantity:           res.Quantity,
			OpenedAt:           now,
			MaxPriceSinceEntry: price,
		}
		e.mu.Lock()
		e.slots = append(e.slots, slot)
		e.stats.Sent++
		e.stats.Filled++
		open := len(e.slots)
		e.mu.Unlock()
		metricOpenSlots.Set(float64(open))

		e.logger.Info("position opened",
			slog.Float64("entry", price),
			slog.Float64("qty", res.Quantity),
			slog.String("order_ref", res.OrderRef),
		)
		e.alert(ctx, "position_opened", "Position opened",
			"entry "+formatPrice(price)+" qty "+formatQty(res.Quantity))

	case domain.SubmitSkipped:
		e.logger.Debug("entry skipped", slog.String("reason", res.Reason))

	case domain.SubmitFailed:
		e.logger.Error("entry order failed", slog.String("error", res.Err.Error()))
		e.alert(ctx, "order_failed", "Entry order failed", res.Err.Error())
	}
}

// evaluateExits updates the running maximum for every open slot, applies the
// exit policy, and submits a SELL for each slot whose exit fired. A skipped
// or failed SELL keeps the slot unchanged for the next pass.
func (e *Engine) evaluateExits(ctx context.Context, close float64, filters domain.SymbolFilters, now time.Time) {
	e.mu.Lock()
	type exit struct {
		idx  int
		dec  ExitDecision
		slot domain.PositionSlot
	}
	var exits []exit
	for i := range e.slots {
		// The running maximum advances regardless of any exit decision.
		e.slots[i].ObservePrice(close)
		dec := EvaluateExit(e.slots[i], close, now, e.cfg.Exits)
		if dec.Exit {
			exits = append(exits, exit{idx: i, dec: dec, slot: e.slots[i]})
		}
	}
	e.mu.Unlock()

	// Close from the highest index down so earlier removals do not shift
	// the remaining indices.
	for j := len(exits) - 1; j >= 0; j-- {
		ex := exits[j]
		res := e.guard.Submit(ctx, executor.SubmitParams{
			Side:     domain.OrderSideSell,
			Price:    close,
			FixedQty: ex.slot.Quantity,
			Filters:  filters,
		})
		switch res.Outcome {
		case domain.SubmitFilled:
			e.closeSlot(ctx, ex.idx, ex.slot, close, res, ex.dec.Reason)
		case domain.SubmitSkipped:
			e.logger.Debug("exit skipped",
				slog.String("reason", res.Reason),
				slog.String("exit_reason", ex.dec.Reason),
			)
		case domain.SubmitFailed:
			e.logger.Error("exit order failed",
				slog.String("exit_reason", ex.dec.Reason),
				slog.String("error", res.Err.Error()),
			)
			e.alert(ctx, "order_failed", "Exit order failed", res.Err.Error())
		}
	}
}

// closeSlot destroys the slot and accrues realized P&L.
func (e *Engine) closeSlot(ctx context.Context, idx int, slot domain.PositionSlot, close float64, res domain.SubmitResult, reason string) {
	exitPrice := close
	realized := (exitPrice - slot.EntryPrice) * res.Quantity

	e.mu.Lock()
	e.slots = append(e.slots[:idx], e.slots[idx+1:]...)
	e.stats.Sent++
	e.stats.Filled++
	e.stats.AddRealized(realized)
	open := len(e.slots)
	total := e.stats.RealizedUSD
	e.mu.Unlock()

	metricOpenSlots.Set(float64(open))
	metricRealizedPnL.Set(total)

	e.logger.Info("position closed",
		slog.String("reason", reason),
		slog.Float64("entry", slot.EntryPrice),
		slog.Float64("exit", exitPrice),
		slog.Float64("realized_usd", realized),
	)
	e.alert(ctx, "position_closed", "Position closed ("+reason+")",
		"entry "+formatPrice(slot.EntryPrice)+" exit "+formatPrice(exitPrice))
}

// onConnState records stream state transitions. Reconnects never reset
// position state; an open slot survives a dropped stream.
func (e *Engine) onConnState(ctx context.Context, cs domain.ConnState) {
	e.mu.Lock()
	prev := e.conn
	e.conn = cs
	e.mu.Unlock()

	if prev == cs {
		return
	}
	e.logger.Info("stream state changed",
		slog.String("from", string(prev)),
		slog.String("to", string(cs)),
	)
	if cs == domain.ConnDisconnected || cs == domain.ConnError {
		e.alert(ctx, "stream_disconnected", "Market data stream down", string(cs))
	}
}

// rolloverStats closes the current stats window and logs its summary. The
// all-time realized accumulator is never reset.
func (e *Engine) rolloverStats() {
	now := e.now()
	e.mu.Lock()
	closed := e.stats.Rollover(now)
	e.mu.Unlock()

	e.logger.Info("stats window closed",
		slog.Int64("signals", closed.Signals),
		slog.Int64("sent", closed.Sent),
		slog.Int64("filled", closed.Filled),
		slog.Float64("window_realized_usd", closed.WindowRealizedUSD),
		slog.Float64("session_realized_usd", closed.RealizedUSD),
	)
}

// alert delivers a notification without blocking the engine loop.
func (e *Engine) alert(ctx context.Context, event, title, message string) {
	if e.alerter == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.alerter.Notify(nctx, event, title, message); err != nil {
			e.logger.Warn("notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}
