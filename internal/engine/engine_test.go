package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/executor"
	"github.com/amvega/scalpbot/internal/market"
	"github.com/amvega/scalpbot/internal/signal"
)

// stubGateway fills every order at the requested quantity unless told to
// fail a side.
type stubGateway struct {
	requests []domain.OrderRequest
	failSell bool
}

func (s *stubGateway) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	s.requests = append(s.requests, req)
	if s.failSell && req.Side == domain.OrderSideSell {
		return domain.OrderFill{}, errors.New("exchange unavailable")
	}
	return domain.OrderFill{
		OrderID:  "ord-1",
		Side:     req.Side,
		Quantity: req.Quantity,
	}, nil
}

func (s *stubGateway) GetBalances(context.Context) (map[string]domain.Balance, error) {
	return nil, nil
}

func (s *stubGateway) GetSymbolFilters(context.Context, string) (domain.SymbolFilters, error) {
	return domain.SymbolFilters{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exitParams() ExitParams {
	return ExitParams{
		TakeProfitPct:    0.0020,
		StopLossPct:      0.0020,
		BreakevenArmPct:  0.0015,
		BreakevenLockPct: 0.0002,
		TrailArmPct:      0.0010,
		TrailPct:         0.0008,
		Timeout:          45 * time.Second,
	}
}

func openSlot(entry float64, openedAt time.Time) domain.PositionSlot {
	return domain.PositionSlot{
		EntryPrice:         entry,
		Quantity:           0.0001,
		OpenedAt:           openedAt,
		MaxPriceSinceEntry: entry,
	}
}

func TestTakeProfitAtExactThreshold(t *testing.T) {
	p := exitParams()
	opened := time.Unix(1000, 0)
	slot := openSlot(100, opened)
	slot.ObservePrice(100.20)

	dec := EvaluateExit(slot, 100.20, opened.Add(time.Second), p)
	if !dec.Exit || dec.Reason != "take_profit" {
		t.Fatalf("expected take_profit at +0.20%%, got %+v", dec)
	}

	dec = EvaluateExit(openSlot(100, opened), 100.19, opened.Add(time.Second), p)
	if dec.Exit && dec.Reason == "take_profit" {
		t.Fatalf("take_profit must not fire below threshold: %+v", dec)
	}
}

func TestStopLoss(t *testing.T) {
	opened := time.Unix(1000, 0)
	slot := openSlot(100, opened)
	slot.ObservePrice(99.80)

	dec := EvaluateExit(slot, 99.80, opened.Add(time.Second), exitParams())
	if !dec.Exit || dec.Reason != "stop_loss" {
		t.Fatalf("expected stop_loss at -0.20%%, got %+v", dec)
	}
}

func TestBreakevenLock(t *testing.T) {
	p := exitParams()
	p.TrailArmPct = 1 // isolate the breakeven stop
	opened := time.Unix(1000, 0)

	// Price touched 100.16, above the arming level 100.15. The stop locks
	// at 100.02 and stays armed after the price falls back.
	slot := openSlot(100, opened)
	slot.ObservePrice(100.16)

	dec := EvaluateExit(slot, 100.05, opened.Add(2*time.Second), p)
	if dec.Exit {
		t.Fatalf("no exit expected above the lock level: %+v", dec)
	}
	if dec.DynamicStop != 100*(1+p.BreakevenLockPct) {
		t.Fatalf("expected lock at 100.02, got %g", dec.DynamicStop)
	}

	slot.ObservePrice(100.01)
	dec = EvaluateExit(slot, 100.01, opened.Add(3*time.Second), p)
	if !dec.Exit || dec.Reason != "dynamic_stop" {
		t.Fatalf("expected dynamic_stop at 100.01, got %+v", dec)
	}
}

func TestBreakevenNotArmedBelowThreshold(t *testing.T) {
	p := exitParams()
	p.TrailArmPct = 1
	opened := time.Unix(1000, 0)

	slot := openSlot(100, opened)
	slot.ObservePrice(100.10) // below arming level 100.15

	dec := EvaluateExit(slot, 100.01, opened.Add(time.Second), p)
	if dec.Exit || dec.DynamicStop != 0 {
		t.Fatalf("stop must not be armed below the threshold: %+v", dec)
	}
}

func TestTrailingStopFollowsMaximum(t *testing.T) {
	p := exitParams()
	p.BreakevenArmPct = 1 // isolate the trailing stop
	opened := time.Unix(1000, 0)
	slot := openSlot(100, opened)

	var prevStop float64
	for _, max := range []float64{100.15, 100.30, 100.30, 100.45} {
		slot.ObservePrice(max)
		dec := EvaluateExit(slot, max, opened.Add(time.Second), p)
		if dec.DynamicStop < prevStop {
			t.Fatalf("trailing stop moved down: %g -> %g", prevStop, dec.DynamicStop)
		}
		prevStop = dec.DynamicStop
	}

	// Price retraces through the trailing stop.
	stop := 100.45 * (1 - p.TrailPct)
	dec := EvaluateExit(slot, stop-0.01, opened.Add(2*time.Second), p)
	if !dec.Exit || dec.Reason != "dynamic_stop" {
		t.Fatalf("expected trailing exit below %g, got %+v", stop, dec)
	}
	if slot.MaxPriceSinceEntry != 100.45 {
		t.Fatalf("running maximum must not decrease: %g", slot.MaxPriceSinceEntry)
	}
}

func TestTimeoutExitRegardlessOfPnL(t *testing.T) {
	opened := time.Unix(1000, 0)
	slot := openSlot(100, opened)
	slot.ObservePrice(100.05)

	// Small unrealized gain, no threshold hit, held past the limit.
	dec := EvaluateExit(slot, 100.05, opened.Add(46*time.Second), exitParams())
	if !dec.Exit || dec.Reason != "timeout" {
		t.Fatalf("expected timeout exit, got %+v", dec)
	}
}

// testEngine wires an engine around a stub gateway with thresholds that
// make a rebound entry easy to produce.
func testEngine(gw *stubGateway) *Engine {
	eval := signal.NewEvaluator(signal.Params{
		WindowSec:      10,
		VolFactor:      1.0,
		ReboundPct:     0.00025,
		BreakoutPct:    0.0002,
		MomentumPct:    0.0005,
		MaxBarStale:    3 * time.Second,
		MaxTickLatency: 1500 * time.Millisecond,
	})
	guard := executor.NewGuard(gw, "BTCUSDT", time.Millisecond, nil, testLogger())
	cfg := Config{
		Symbol:         "BTCUSDT",
		QuoteAsset:     "USDT",
		MaxSlots:       1,
		WindowSec:      10,
		BudgetUSD:      12,
		BudgetFraction: 0.98,
		Exits:          exitParams(),
		StatsWindow:    time.Minute,
	}
	e := New(cfg, market.NewAggregator(120), eval, guard, Inputs{}, nil, nil, testLogger())
	e.symFilters = domain.SymbolFilters{StepSize: 0.00001, MinNotional: 5}
	e.acct = map[string]domain.Balance{"USDT": {Asset: "USDT", Free: 1000}}
	return e
}

func feed(e *Engine, sec int64, price float64) {
	e.now = func() time.Time { return time.Unix(sec, 500e6) }
	e.onTick(context.Background(), domain.Tick{Time: time.Unix(sec, 0), Price: price, Qty: 1})
}

func TestEngineOpensAndClosesPosition(t *testing.T) {
	gw := &stubGateway{}
	e := testEngine(gw)

	// Flat window, then a pop large enough for the rebound trigger.
	feed(e, 100, 100)
	feed(e, 101, 100)
	feed(e, 102, 100)
	feed(e, 103, 100.05)

	if len(e.slots) != 1 {
		t.Fatalf("expected an open slot, have %d", len(e.slots))
	}
	if e.slots[0].EntryPrice != 100.05 {
		t.Fatalf("entry price = %g, want 100.05", e.slots[0].EntryPrice)
	}
	if e.stats.Signals != 1 || e.stats.Filled != 1 {
		t.Fatalf("stats after entry: %+v", e.stats)
	}

	// +0.21% from entry clears the take-profit threshold.
	feed(e, 104, 100.27)

	if len(e.slots) != 0 {
		t.Fatalf("expected slot closed, have %d", len(e.slots))
	}
	if e.stats.RealizedUSD <= 0 {
		t.Fatalf("expected positive realized pnl, got %g", e.stats.RealizedUSD)
	}
	var sells int
	for _, req := range gw.requests {
		if req.Side == domain.OrderSideSell {
			sells++
		}
	}
	if sells != 1 {
		t.Fatalf("expected exactly one sell, got %d", sells)
	}
}

func TestEngineSlotRetainedOnExitFailure(t *testing.T) {
	gw := &stubGateway{failSell: true}
	e := testEngine(gw)

	feed(e, 100, 100)
	feed(e, 101, 100)
	feed(e, 102, 100)
	feed(e, 103, 100.05)
	if len(e.slots) != 1 {
		t.Fatalf("expected an open slot, have %d", len(e.slots))
	}

	feed(e, 104, 100.27)
	if len(e.slots) != 1 {
		t.Fatalf("slot must survive a failed exit order, have %d", len(e.slots))
	}

	gw.failSell = false
	feed(e, 105, 100.27)
	if len(e.slots) != 0 {
		t.Fatalf("expected slot closed after retry, have %d", len(e.slots))
	}
}

func TestEngineMaxPriceNonDecreasing(t *testing.T) {
	gw := &stubGateway{}
	e := testEngine(gw)

	feed(e, 100, 100)
	feed(e, 101, 100)
	feed(e, 102, 100)
	feed(e, 103, 100.05)
	if len(e.slots) != 1 {
		t.Fatalf("expected an open slot")
	}

	// A local peak, then a pullback too shallow to trip any exit.
	feed(e, 104, 100.14)
	feed(e, 105, 100.12)
	if len(e.slots) != 1 {
		t.Fatalf("expected slot still open, have %d", len(e.slots))
	}
	if e.slots[0].MaxPriceSinceEntry != 100.14 {
		t.Fatalf("running maximum = %g, want 100.14", e.slots[0].MaxPriceSinceEntry)
	}
}

func TestEngineNoEntryWhileSlotOpen(t *testing.T) {
	gw := &stubGateway{}
	e := testEngine(gw)

	feed(e, 100, 100)
	feed(e, 101, 100)
	feed(e, 102, 100)
	feed(e, 103, 100.05)
	feed(e, 104, 100.11) // another entry-grade pop while the slot is open

	if len(e.slots) != 1 {
		t.Fatalf("expected a single slot, have %d", len(e.slots))
	}
	var buys int
	for _, req := range gw.requests {
		if req.Side == domain.OrderSideBuy {
			buys++
		}
	}
	if buys != 1 {
		t.Fatalf("expected exactly one buy, got %d", buys)
	}
}

func TestSnapshotConsistency(t *testing.T) {
	gw := &stubGateway{}
	e := testEngine(gw)

	feed(e, 100, 100)
	feed(e, 101, 100)
	feed(e, 102, 100)
	feed(e, 103, 100.05)

	s := e.Snapshot()
	if s.Symbol != "BTCUSDT" || s.LastPrice != 100.05 {
		t.Fatalf("unexpected snapshot header: %+v", s)
	}
	if len(s.Slots) != 1 {
		t.Fatalf("expected one slot view, have %d", len(s.Slots))
	}
	if s.Slots[0].EntryPrice != 100.05 || s.Slots[0].PnLPct != 0 {
		t.Fatalf("unexpected slot view: %+v", s.Slots[0])
	}
	if len(s.Bars) != 4 {
		t.Fatalf("expected 4 bars in snapshot, have %d", len(s.Bars))
	}
	if !s.Eval.ShouldEnter() {
		t.Fatalf("snapshot should carry the last evaluation: %+v", s.Eval)
	}
}
