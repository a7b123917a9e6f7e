package domain

import "context"

// SymbolFilters are the exchange-imposed quantization rules for one symbol,
// refreshed periodically and read-only to the engine core.
type SymbolFilters struct {
	StepSize    float64 `json:"step_size"`
	MinQty      float64 `json:"min_qty"`
	TickSize    float64 `json:"tick_size"`
	MinNotional float64 `json:"min_notional"`
}

// Balance is the free/locked amount of a single asset.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// ExchangeGateway executes orders and account queries against the exchange.
// It owns its own network timeout and retry policy; the engine never cancels
// an in-flight order.
type ExchangeGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error)
	GetBalances(ctx context.Context) (map[string]Balance, error)
	GetSymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
}

// SnapshotPublisher receives serialized engine snapshots for external
// observability consumers. Implementations must not block the engine loop
// beyond a short network write.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, payload []byte) error
}
