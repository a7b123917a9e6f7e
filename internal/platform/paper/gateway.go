// Package paper is an in-memory exchange gateway for dry runs. Orders fill
// instantly at the mark price and move simulated balances; the rest of the
// bot runs unchanged.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

// Gateway implements domain.ExchangeGateway against simulated state.
type Gateway struct {
	symbol     string
	baseAsset  string
	quoteAsset string

	mu       sync.Mutex
	mark     float64
	balances map[string]domain.Balance
	filters  domain.SymbolFilters
	orderSeq int64
}

// NewGateway creates a paper gateway seeded with the given quote balance.
func NewGateway(symbol, baseAsset, quoteAsset string, quoteBalance float64, filters domain.SymbolFilters) *Gateway {
	return &Gateway{
		symbol:     symbol,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		filters:    filters,
		balances: map[string]domain.Balance{
			quoteAsset: {Asset: quoteAsset, Free: quoteBalance},
			baseAsset:  {Asset: baseAsset},
		},
	}
}

// UpdatePrice sets the mark price used to fill subsequent orders. The feed
// calls this on every tick.
func (g *Gateway) UpdatePrice(price float64) {
	g.mu.Lock()
	g.mark = price
	g.mu.Unlock()
}

// PlaceOrder fills the order at the current mark price, debiting and
// crediting the simulated balances.
func (g *Gateway) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.mark <= 0 {
		return domain.OrderFill{}, fmt.Errorf("paper: no mark price: %w", domain.ErrNoPrice)
	}

	price := g.mark
	cost := req.Quantity * price
	base := g.balances[g.baseAsset]
	quote := g.balances[g.quoteAsset]

	switch req.Side {
	case domain.OrderSideBuy:
		if quote.Free < cost {
			return domain.OrderFill{}, fmt.Errorf("paper: insufficient %s: have %.8f need %.8f: %w",
				g.quoteAsset, quote.Free, cost, domain.ErrOrderRejected)
		}
		quote.Free -= cost
		base.Free += req.Quantity
	case domain.OrderSideSell:
		if base.Free < req.Quantity {
			return domain.OrderFill{}, fmt.Errorf("paper: insufficient %s: have %.8f need %.8f: %w",
				g.baseAsset, base.Free, req.Quantity, domain.ErrOrderRejected)
		}
		base.Free -= req.Quantity
		quote.Free += cost
	default:
		return domain.OrderFill{}, fmt.Errorf("paper: unknown side %q", req.Side)
	}
	g.balances[g.baseAsset] = base
	g.balances[g.quoteAsset] = quote
	g.orderSeq++

	return domain.OrderFill{
		OrderID:       "paper-" + strconv.FormatInt(g.orderSeq, 10),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         price,
		Quantity:      req.Quantity,
		Time:          time.Now(),
	}, nil
}

// GetBalances returns a copy of the simulated balances.
func (g *Gateway) GetBalances(context.Context) (map[string]domain.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]domain.Balance, len(g.balances))
	for k, v := range g.balances {
		out[k] = v
	}
	return out, nil
}

// GetSymbolFilters returns the configured filters for the simulated symbol.
func (g *Gateway) GetSymbolFilters(_ context.Context, symbol string) (domain.SymbolFilters, error) {
	if symbol != g.symbol {
		return domain.SymbolFilters{}, fmt.Errorf("paper: symbol %s: %w", symbol, domain.ErrNoFilters)
	}
	return g.filters, nil
}
