// Package service holds the periodic background workers around the engine.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/amvega/scalpbot/internal/domain"
)

// AccountService keeps the engine's view of balances and symbol filters
// current. Balances refresh on a short interval and immediately after every
// fill; filters refresh on a long interval. A failed refresh keeps the
// last known values.
type AccountService struct {
	gateway domain.ExchangeGateway
	symbol  string

	balanceEvery time.Duration
	filterEvery  time.Duration

	fills    <-chan domain.FillEvent
	balances chan<- domain.BalanceUpdate
	filters  chan<- domain.FilterUpdate

	logger *slog.Logger
}

// NewAccountService creates an AccountService polling the gateway for one
// symbol.
func NewAccountService(
	gateway domain.ExchangeGateway,
	symbol string,
	balanceEvery, filterEvery time.Duration,
	fills <-chan domain.FillEvent,
	balances chan<- domain.BalanceUpdate,
	filters chan<- domain.FilterUpdate,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		gateway:      gateway,
		symbol:       symbol,
		balanceEvery: balanceEvery,
		filterEvery:  filterEvery,
		fills:        fills,
		balances:     balances,
		filters:      filters,
		logger:       logger.With(slog.String("component", "account_service")),
	}
}

// Run fetches balances and filters once up front, then keeps both fresh
// until ctx is cancelled.
func (s *AccountService) Run(ctx context.Context) error {
	s.refreshFilters(ctx)
	s.refreshBalances(ctx)

	balanceTicker := time.NewTicker(s.balanceEvery)
	defer balanceTicker.Stop()
	filterTicker := time.NewTicker(s.filterEvery)
	defer filterTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-balanceTicker.C:
			s.refreshBalances(ctx)

		case <-filterTicker.C:
			s.refreshFilters(ctx)

		case ev, ok := <-s.fills:
			if !ok {
				return nil
			}
			// A fill changes both assets; don't wait for the next tick.
			s.logger.Debug("refreshing balances after fill",
				slog.String("side", string(ev.Side)),
				slog.String("order_ref", ev.OrderRef),
			)
			s.refreshBalances(ctx)
		}
	}
}

func (s *AccountService) refreshBalances(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bals, err := s.gateway.GetBalances(rctx)
	if err != nil {
		s.logger.Warn("balance refresh failed, keeping last known",
			slog.String("error", err.Error()))
		return
	}
	update := domain.BalanceUpdate{Balances: bals, At: time.Now()}
	select {
	case s.balances <- update:
	case <-ctx.Done():
	}
}

func (s *AccountService) refreshFilters(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	f, err := s.gateway.GetSymbolFilters(rctx, s.symbol)
	if err != nil {
		s.logger.Warn("filter refresh failed, keeping last known",
			slog.String("error", err.Error()))
		return
	}
	update := domain.FilterUpdate{Filters: f, At: time.Now()}
	select {
	case s.filters <- update:
	case <-ctx.Done():
	}
}
