// Package executor is the only component allowed to call the exchange
// gateway. Every submission passes a per-side cooldown, step-size
// quantization, and a minimum-notional check before it is handed to the
// gateway under a fresh idempotent client order ID.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/amvega/scalpbot/internal/domain"
)

var (
	metricOrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scalpbot_orders_attempted_total",
		Help: "Submissions handed to the execution guard",
	})
	metricOrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scalpbot_orders_placed_total",
		Help: "Orders confirmed filled by the gateway",
	})
	metricOrdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scalpbot_orders_failed_total",
		Help: "Orders that failed at the gateway",
	})
	metricOrdersSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scalpbot_orders_skipped_total",
		Help: "Orders rejected by the guard before reaching the gateway",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(metricOrdersAttempted, metricOrdersPlaced, metricOrdersFailed, metricOrdersSkipped)
}

// SubmitParams describes one submission. Exactly one of FixedQty (exit
// path) or the budget fields (entry path) is used: a FixedQty > 0 wins.
type SubmitParams struct {
	Side  domain.OrderSide
	Price float64

	// Exit path: sell exactly this quantity (rounded down to step).
	FixedQty float64

	// Entry path: size from min(BudgetUSD, BudgetFraction*FreeQuote).
	BudgetUSD      float64
	BudgetFraction float64
	FreeQuote      float64

	Filters domain.SymbolFilters
}

// Guard enforces the submission-side risk controls. It owns the per-side
// cooldown timestamps exclusively and never mutates position state; the
// caller acts on the returned SubmitResult.
type Guard struct {
	gateway  domain.ExchangeGateway
	symbol   string
	cooldown time.Duration
	fills    chan<- domain.FillEvent
	logger   *slog.Logger

	mu         sync.Mutex
	lastSubmit map[domain.OrderSide]time.Time

	seq atomic.Uint64

	// now is swappable for tests.
	now func() time.Time
}

// NewGuard creates a Guard submitting to gateway for the given symbol.
// Confirmed fills are announced on fills without blocking; pass nil to
// disable fill events.
func NewGuard(gateway domain.ExchangeGateway, symbol string, cooldown time.Duration, fills chan<- domain.FillEvent, logger *slog.Logger) *Guard {
	return &Guard{
		gateway:    gateway,
		symbol:     symbol,
		cooldown:   cooldown,
		fills:      fills,
		logger:     logger.With(slog.String("component", "executor")),
		lastSubmit: make(map[domain.OrderSide]time.Time),
		now:        time.Now,
	}
}

// Submit runs the full guard pipeline and, if everything passes, places a
// market order through the gateway. A gateway failure does not advance the
// cooldown timestamp, so the next eligible pass may retry naturally.
func (g *Guard) Submit(ctx context.Context, p SubmitParams) domain.SubmitResult {
	metricOrdersAttempted.Inc()
	now := g.now()

	if p.Price <= 0 {
		return g.skip(p.Side, "no-price")
	}

	g.mu.Lock()
	last, seen := g.lastSubmit[p.Side]
	g.mu.Unlock()
	if seen && now.Sub(last) < g.cooldown {
		return g.skip(p.Side, "cooldown")
	}

	qty := g.resolveQuantity(p)
	if p.Filters.MinQty > 0 && qty < p.Filters.MinQty {
		return g.skip(p.Side, "min-qty")
	}
	if qty*p.Price < p.Filters.MinNotional {
		return g.skip(p.Side, "min-notional")
	}

	req := domain.OrderRequest{
		Symbol:        g.symbol,
		Side:          p.Side,
		Type:          "MARKET",
		Quantity:      qty,
		ClientOrderID: g.nextClientOrderID(p.Side),
	}

	fill, err := g.gateway.PlaceOrder(ctx, req)
	if err != nil {
		metricOrdersFailed.Inc()
		g.logger.Error("order failed",
			slog.String("side", string(p.Side)),
			slog.Float64("qty", qty),
			slog.String("client_order_id", req.ClientOrderID),
			slog.String("error", err.Error()),
		)
		return domain.SubmitResult{Outcome: domain.SubmitFailed, Err: fmt.Errorf("executor: place order: %w", err)}
	}

	g.mu.Lock()
	g.lastSubmit[p.Side] = now
	g.mu.Unlock()
	metricOrdersPlaced.Inc()

	filledQty := fill.Quantity
	if filledQty == 0 {
		filledQty = qty
	}
	g.logger.Info("order filled",
		slog.String("side", string(p.Side)),
		slog.Float64("qty", filledQty),
		slog.Float64("price", fill.Price),
		slog.String("order_id", fill.OrderID),
	)

	if g.fills != nil {
		ev := domain.FillEvent{
			Side:     p.Side,
			Price:    fill.Price,
			Quantity: filledQty,
			OrderRef: fill.OrderID,
			Time:     now,
		}
		select {
		case g.fills <- ev:
		default:
			// Refresh consumer lagging; the periodic poll will catch up.
		}
	}

	return domain.SubmitResult{
		Outcome:  domain.SubmitFilled,
		Quantity: filledQty,
		OrderRef: fill.OrderID,
	}
}

// resolveQuantity quantizes the requested size to the symbol's step size.
// On the entry path the quantity is floored at one step unit so a tiny
// budget still produces a checkable candidate for the notional guard.
func (g *Guard) resolveQuantity(p SubmitParams) float64 {
	step := p.Filters.StepSize
	if p.FixedQty > 0 {
		return roundToStep(p.FixedQty, step)
	}

	budget := p.BudgetUSD
	if limit := p.BudgetFraction * p.FreeQuote; limit < budget {
		budget = limit
	}
	if budget < 0 {
		budget = 0
	}
	qty := roundToStep(budget/p.Price, step)
	if qty < step {
		qty = step
	}
	return qty
}

// skip records a skipped submission and returns the result.
func (g *Guard) skip(side domain.OrderSide, reason string) domain.SubmitResult {
	metricOrdersSkipped.WithLabelValues(reason).Inc()
	g.logger.Debug("order skipped",
		slog.String("side", string(side)),
		slog.String("reason", reason),
	)
	return domain.SubmitResult{Outcome: domain.SubmitSkipped, Reason: reason}
}

// nextClientOrderID builds an idempotent client order identifier from a
// monotonic sequence plus a random component, so gateway-level retries
// cannot double-fill.
func (g *Guard) nextClientOrderID(side domain.OrderSide) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("scalp-%s-%d-%s", strings.ToLower(string(side)), g.seq.Add(1), id)
}

// roundToStep rounds qty down to the nearest multiple of step. The epsilon
// absorbs float error so an exact multiple is not pushed a step down.
func roundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor((qty+1e-12)/step) * step
}
