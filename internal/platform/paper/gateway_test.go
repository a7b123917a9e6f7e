package paper

import (
	"context"
	"math"
	"testing"

	"github.com/amvega/scalpbot/internal/domain"
)

func newTestGateway() *Gateway {
	return NewGateway("BTCUSDT", "BTC", "USDT", 100,
		domain.SymbolFilters{StepSize: 0.00001, MinNotional: 5})
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	g := newTestGateway()
	g.UpdatePrice(50000)

	fill, err := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Type: "MARKET", Quantity: 0.001,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if fill.Price != 50000 || fill.Quantity != 0.001 {
		t.Fatalf("unexpected fill: %+v", fill)
	}

	bals, _ := g.GetBalances(context.Background())
	if got := bals["USDT"].Free; math.Abs(got-50) > 1e-9 {
		t.Fatalf("quote balance after buy = %g, want 50", got)
	}
	if got := bals["BTC"].Free; math.Abs(got-0.001) > 1e-12 {
		t.Fatalf("base balance after buy = %g, want 0.001", got)
	}

	g.UpdatePrice(51000)
	if _, err := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideSell, Type: "MARKET", Quantity: 0.001,
	}); err != nil {
		t.Fatalf("sell: %v", err)
	}

	bals, _ = g.GetBalances(context.Background())
	if got := bals["USDT"].Free; math.Abs(got-101) > 1e-9 {
		t.Fatalf("quote balance after round trip = %g, want 101", got)
	}
}

func TestRejectsWithoutMarkPrice(t *testing.T) {
	g := newTestGateway()
	_, err := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Type: "MARKET", Quantity: 0.001,
	})
	if err == nil {
		t.Fatalf("expected error before first price update")
	}
}

func TestRejectsOverdraw(t *testing.T) {
	g := newTestGateway()
	g.UpdatePrice(50000)

	if _, err := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Type: "MARKET", Quantity: 1,
	}); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if _, err := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideSell, Type: "MARKET", Quantity: 0.001,
	}); err == nil {
		t.Fatalf("expected insufficient base error")
	}
}

func TestFiltersForKnownSymbolOnly(t *testing.T) {
	g := newTestGateway()
	if _, err := g.GetSymbolFilters(context.Background(), "ETHUSDT"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
	f, err := g.GetSymbolFilters(context.Background(), "BTCUSDT")
	if err != nil || f.MinNotional != 5 {
		t.Fatalf("filters = %+v, err %v", f, err)
	}
}
