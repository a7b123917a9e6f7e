// Package signal turns the recent bar window into an entry recommendation.
// Three gates (freshness, latency, volume) must pass and at least one of
// three triggers (rebound, breakout, momentum) must fire for an entry.
package signal

import (
	"fmt"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

// Verdict classifies an evaluation outcome.
type Verdict int

const (
	// VerdictInsufficientData means the window has too few bars to say
	// anything; the engine treats it like the absence of a signal.
	VerdictInsufficientData Verdict = iota
	// VerdictBlocked means the freshness or latency gate failed; triggers
	// were not evaluated.
	VerdictBlocked
	// VerdictNoSignal means the data is usable but no entry fired.
	VerdictNoSignal
	// VerdictEnter recommends opening a position.
	VerdictEnter
)

// String returns the verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case VerdictInsufficientData:
		return "insufficient_data"
	case VerdictBlocked:
		return "blocked"
	case VerdictNoSignal:
		return "no_signal"
	case VerdictEnter:
		return "enter"
	default:
		return "unknown"
	}
}

// Gates holds the boolean state of the three independent gates.
type Gates struct {
	Fresh   bool `json:"fresh"`
	Latency bool `json:"latency"`
	Volume  bool `json:"volume"`
}

// Triggers holds the boolean state of the three independent entry triggers.
// All false when the evaluation was blocked before trigger computation.
type Triggers struct {
	Rebound  bool `json:"rebound"`
	Breakout bool `json:"breakout"`
	Momentum bool `json:"momentum"`
}

// Evaluation is the full result of one evaluation pass, exposed unchanged in
// engine snapshots.
type Evaluation struct {
	Verdict  Verdict  `json:"verdict"`
	Gates    Gates    `json:"gates"`
	Triggers Triggers `json:"triggers"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ShouldEnter reports whether the evaluation recommends an entry.
func (e Evaluation) ShouldEnter() bool { return e.Verdict == VerdictEnter }

// Params are the fixed thresholds of the evaluator. All *Pct values are
// fractions.
type Params struct {
	WindowSec      int
	VolFactor      float64
	ReboundPct     float64
	BreakoutPct    float64
	MomentumPct    float64
	MaxBarStale    time.Duration
	MaxTickLatency time.Duration
}

// Evaluator computes entry recommendations from a bar window plus data
// freshness metadata. It is stateless and safe to share.
type Evaluator struct {
	p Params
}

// NewEvaluator creates an Evaluator with the given thresholds.
func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{p: p}
}

// minBars is the minimum number of bars required for a meaningful verdict.
const minBars = 4

// Evaluate inspects the bar window and returns the gate, trigger, and
// verdict state. bars must be chronological; the newest bar may still be
// accumulating. tickLatency is the delay measured on the previous tick;
// latencyKnown is false before the first measurement (unknown latency
// passes the gate). A failed freshness or latency gate short-circuits to
// VerdictBlocked without evaluating triggers.
func (e *Evaluator) Evaluate(bars []domain.SecondBar, tickLatency time.Duration, latencyKnown bool, now time.Time) Evaluation {
	if len(bars) < minBars {
		return Evaluation{
			Verdict: VerdictInsufficientData,
			Reasons: []string{fmt.Sprintf("need %d bars, have %d", minBars, len(bars))},
		}
	}

	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	var ev Evaluation
	ev.Gates.Fresh = now.Sub(last.Time()) <= e.p.MaxBarStale
	ev.Gates.Latency = !latencyKnown || tickLatency <= e.p.MaxTickLatency

	if !ev.Gates.Fresh || !ev.Gates.Latency {
		ev.Verdict = VerdictBlocked
		if !ev.Gates.Fresh {
			ev.Reasons = append(ev.Reasons, "stale bars")
		}
		if !ev.Gates.Latency {
			ev.Reasons = append(ev.Reasons, "tick latency")
		}
		return ev
	}

	ev.Gates.Volume = last.Volume >= prev.Volume*e.p.VolFactor

	// Trigger extremes exclude the newest bar: a bar's high is never below
	// its own close, so including it would make the breakout condition
	// unsatisfiable.
	recent := bars[:len(bars)-1]
	if len(recent) > e.p.WindowSec {
		recent = recent[len(recent)-e.p.WindowSec:]
	}
	recentLow, recentHigh := recent[0].Low, recent[0].High
	for _, b := range recent[1:] {
		if b.Low < recentLow {
			recentLow = b.Low
		}
		if b.High > recentHigh {
			recentHigh = b.High
		}
	}

	ev.Triggers.Rebound = last.Close >= recentLow*(1+e.p.ReboundPct)
	ev.Triggers.Breakout = last.Close >= recentHigh*(1+e.p.BreakoutPct) && last.Close > prev.Close
	if prev.Close > 0 {
		move := (last.Close - prev.Close) / prev.Close
		if move < 0 {
			move = -move
		}
		ev.Triggers.Momentum = move >= e.p.MomentumPct
	}

	if ev.Triggers.Rebound {
		ev.Reasons = append(ev.Reasons, "rebound")
	}
	if ev.Triggers.Breakout {
		ev.Reasons = append(ev.Reasons, "breakout")
	}
	if ev.Triggers.Momentum {
		ev.Reasons = append(ev.Reasons, "momentum")
	}

	if ev.Gates.Volume && (ev.Triggers.Rebound || ev.Triggers.Breakout || ev.Triggers.Momentum) {
		ev.Verdict = VerdictEnter
	} else {
		ev.Verdict = VerdictNoSignal
		if !ev.Gates.Volume {
			ev.Reasons = append(ev.Reasons, "volume below threshold")
		}
	}
	return ev
}
