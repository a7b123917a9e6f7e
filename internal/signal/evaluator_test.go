package signal

import (
	"testing"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

func testParams() Params {
	return Params{
		WindowSec:      10,
		VolFactor:      1.0,
		ReboundPct:     0.00025,
		BreakoutPct:    0.0002,
		MomentumPct:    0.0005,
		MaxBarStale:    3 * time.Second,
		MaxTickLatency: 1500 * time.Millisecond,
	}
}

// bar builds a flat bar at price with the given close and volume.
func bar(sec int64, low, high, close, vol float64) domain.SecondBar {
	open := close
	if open > high {
		open = high
	}
	if open < low {
		open = low
	}
	return domain.SecondBar{Sec: sec, Open: open, High: high, Low: low, Close: close, Volume: vol}
}

func TestInsufficientData(t *testing.T) {
	e := NewEvaluator(testParams())
	bars := []domain.SecondBar{bar(1, 100, 100, 100, 1), bar(2, 100, 100, 100, 1)}
	ev := e.Evaluate(bars, 0, false, time.Unix(2, 500e6))
	if ev.Verdict != VerdictInsufficientData {
		t.Fatalf("expected insufficient data, got %s", ev.Verdict)
	}
}

func TestStaleBarsBlockBeforeTriggers(t *testing.T) {
	e := NewEvaluator(testParams())
	bars := []domain.SecondBar{
		bar(100, 100, 100.1, 100, 5),
		bar(101, 100, 100.1, 100, 5),
		bar(102, 100, 100.1, 100, 5),
		bar(103, 100, 100.1, 100.03, 5),
	}
	// 10 seconds after the newest bar: freshness gate fails.
	ev := e.Evaluate(bars, 0, false, time.Unix(113, 0))
	if ev.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked, got %s", ev.Verdict)
	}
	if ev.Triggers != (Triggers{}) {
		t.Fatalf("triggers must not be evaluated when blocked: %+v", ev.Triggers)
	}
}

func TestLatencyGateBlocks(t *testing.T) {
	e := NewEvaluator(testParams())
	bars := []domain.SecondBar{
		bar(100, 100, 100.1, 100, 5),
		bar(101, 100, 100.1, 100, 5),
		bar(102, 100, 100.1, 100, 5),
		bar(103, 100, 100.1, 100.03, 5),
	}
	now := time.Unix(103, 500e6)
	ev := e.Evaluate(bars, 5*time.Second, true, now)
	if ev.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked on latency, got %s", ev.Verdict)
	}
	// Unknown latency passes the gate.
	ev = e.Evaluate(bars, 0, false, now)
	if !ev.Gates.Latency {
		t.Fatalf("unknown latency must pass the gate")
	}
}

func TestReboundTrigger(t *testing.T) {
	// recentLow = 100, REBOUND_PCT = 0.00025, close = 100.03:
	// 100.03 >= 100 * 1.00025 = 100.025.
	e := NewEvaluator(testParams())
	bars := []domain.SecondBar{
		bar(100, 100, 100.2, 100.1, 5),
		bar(101, 100, 100.2, 100.05, 5),
		bar(102, 100, 100.2, 100.02, 5),
		bar(103, 100.02, 100.03, 100.03, 5),
	}
	ev := e.Evaluate(bars, 0, false, time.Unix(103, 500e6))
	if !ev.Triggers.Rebound {
		t.Fatalf("expected rebound trigger: %+v", ev)
	}
	if ev.Verdict != VerdictEnter {
		t.Fatalf("expected enter, got %s (%v)", ev.Verdict, ev.Reasons)
	}
}

func TestBreakoutRequiresRisingClose(t *testing.T) {
	p := testParams()
	p.ReboundPct = 1 // disable rebound
	p.MomentumPct = 1
	e := NewEvaluator(p)

	base := []domain.SecondBar{
		bar(100, 99.9, 100.0, 100.0, 5),
		bar(101, 99.9, 100.0, 100.0, 5),
		bar(102, 99.9, 100.0, 99.98, 5),
	}

	rising := append(append([]domain.SecondBar{}, base...), bar(103, 100.0, 100.05, 100.05, 5))
	ev := e.Evaluate(rising, 0, false, time.Unix(103, 500e6))
	if !ev.Triggers.Breakout || ev.Verdict != VerdictEnter {
		t.Fatalf("expected breakout entry: %+v", ev)
	}

	// Same close level but the previous close is higher: no breakout.
	flat := append(append([]domain.SecondBar{}, base[:2]...),
		bar(102, 99.9, 100.1, 100.06, 5),
		bar(103, 100.0, 100.05, 100.05, 5),
	)
	ev = e.Evaluate(flat, 0, false, time.Unix(103, 500e6))
	if ev.Triggers.Breakout {
		t.Fatalf("breakout must require close above previous close: %+v", ev)
	}
}

func TestMomentumFallback(t *testing.T) {
	p := testParams()
	p.ReboundPct = 1
	p.BreakoutPct = 1
	e := NewEvaluator(p)
	bars := []domain.SecondBar{
		bar(100, 100, 100.1, 100, 5),
		bar(101, 100, 100.1, 100, 5),
		bar(102, 100, 100.1, 100, 5),
		bar(103, 99.9, 100.1, 99.9, 5), // -0.1% move, above 0.05% threshold
	}
	ev := e.Evaluate(bars, 0, false, time.Unix(103, 500e6))
	if !ev.Triggers.Momentum {
		t.Fatalf("expected momentum trigger: %+v", ev)
	}
	if ev.Verdict != VerdictEnter {
		t.Fatalf("expected enter, got %s", ev.Verdict)
	}
}

func TestVolumeGateSuppressesEntry(t *testing.T) {
	p := testParams()
	p.VolFactor = 2.0
	e := NewEvaluator(p)
	bars := []domain.SecondBar{
		bar(100, 100, 100.2, 100.1, 5),
		bar(101, 100, 100.2, 100.05, 5),
		bar(102, 100, 100.2, 100.02, 5),
		bar(103, 100.02, 100.03, 100.03, 5), // rebound fires, volume 5 < 5*2
	}
	ev := e.Evaluate(bars, 0, false, time.Unix(103, 500e6))
	if !ev.Triggers.Rebound {
		t.Fatalf("expected rebound trigger: %+v", ev)
	}
	if ev.Verdict != VerdictNoSignal {
		t.Fatalf("expected no signal when volume gate fails, got %s", ev.Verdict)
	}
}
