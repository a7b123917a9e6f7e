package domain

import "time"

// FillEvent is emitted by the execution guard after every confirmed fill.
// The balance service consumes it to trigger an immediate account refresh;
// the guard itself never touches balances.
type FillEvent struct {
	Side     OrderSide
	Price    float64
	Quantity float64
	OrderRef string
	Time     time.Time
}

// BalanceUpdate carries refreshed account balances into the engine loop.
type BalanceUpdate struct {
	Balances map[string]Balance
	At       time.Time
}

// FilterUpdate carries refreshed symbol filters into the engine loop.
type FilterUpdate struct {
	Filters SymbolFilters
	At      time.Time
}
