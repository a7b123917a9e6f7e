// Package market folds the raw trade tick stream into one-second OHLCV bars
// and retains a bounded trailing window of them.
package market

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/amvega/scalpbot/internal/domain"
)

var metricLateTicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "scalpbot_late_ticks_dropped_total",
	Help: "Ticks older than the oldest retained bar, silently dropped",
})

func init() {
	prometheus.MustRegister(metricLateTicksDropped)
}

// Aggregator incrementally builds SecondBars from ticks. It is not safe for
// concurrent use; the engine goroutine is its only writer, and windows
// handed out are valid until the next Ingest call.
type Aggregator struct {
	retention int
	bars      []domain.SecondBar // chronological, len <= retention
}

// NewAggregator creates an Aggregator retaining at most retention bars.
func NewAggregator(retention int) *Aggregator {
	if retention < 1 {
		retention = 1
	}
	return &Aggregator{
		retention: retention,
		bars:      make([]domain.SecondBar, 0, retention),
	}
}

// Ingest folds a tick into the bar for its second in O(1) for the common
// in-order case. A tick for a second newer than the last bar opens a new
// bar; a tick for a retained earlier second is folded into that bar; a tick
// older than the oldest retained second is dropped. It reports whether the
// tick was applied.
func (a *Aggregator) Ingest(t domain.Tick) bool {
	sec := t.Second()

	if len(a.bars) == 0 {
		a.bars = append(a.bars, domain.NewSecondBar(sec, t.Price))
		return true
	}

	last := &a.bars[len(a.bars)-1]
	switch {
	case sec == last.Sec:
		last.Apply(t.Price)
		return true
	case sec > last.Sec:
		a.bars = append(a.bars, domain.NewSecondBar(sec, t.Price))
		a.evict()
		return true
	}

	// Late tick: fold into its bar if that second is still retained.
	if sec < a.bars[0].Sec {
		metricLateTicksDropped.Inc()
		return false
	}
	for i := len(a.bars) - 2; i >= 0; i-- {
		if a.bars[i].Sec == sec {
			a.bars[i].Apply(t.Price)
			return true
		}
		if a.bars[i].Sec < sec {
			break
		}
	}
	// The second falls into a gap with no trades; seed a bar in place.
	a.insert(domain.NewSecondBar(sec, t.Price))
	return true
}

// evict drops the oldest bars beyond the retention horizon.
func (a *Aggregator) evict() {
	if len(a.bars) <= a.retention {
		return
	}
	excess := len(a.bars) - a.retention
	copy(a.bars, a.bars[excess:])
	a.bars = a.bars[:a.retention]
}

// insert places a bar at its chronological position.
func (a *Aggregator) insert(b domain.SecondBar) {
	i := len(a.bars)
	for i > 0 && a.bars[i-1].Sec > b.Sec {
		i--
	}
	a.bars = append(a.bars, domain.SecondBar{})
	copy(a.bars[i+1:], a.bars[i:])
	a.bars[i] = b
	a.evict()
}

// Window returns the last n bars in chronological order. The returned slice
// aliases internal storage and must not be retained across Ingest calls.
func (a *Aggregator) Window(n int) []domain.SecondBar {
	if n <= 0 || len(a.bars) == 0 {
		return nil
	}
	if n > len(a.bars) {
		n = len(a.bars)
	}
	return a.bars[len(a.bars)-n:]
}

// Last returns the newest bar, which may still be accumulating trades.
func (a *Aggregator) Last() (domain.SecondBar, bool) {
	if len(a.bars) == 0 {
		return domain.SecondBar{}, false
	}
	return a.bars[len(a.bars)-1], true
}

// Len returns the number of retained bars.
func (a *Aggregator) Len() int { return len(a.bars) }
