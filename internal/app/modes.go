package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/engine"
	"github.com/amvega/scalpbot/internal/executor"
	"github.com/amvega/scalpbot/internal/feed"
	"github.com/amvega/scalpbot/internal/market"
	"github.com/amvega/scalpbot/internal/server"
	"github.com/amvega/scalpbot/internal/server/handler"
	"github.com/amvega/scalpbot/internal/service"
	"github.com/amvega/scalpbot/internal/signal"
)

// BotMode runs the full trading loop: feed, engine, account service, and
// the optional status API. Live and paper mode share this path; paper mode
// additionally pushes every tick's price into the simulated gateway.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg
	a.logger.InfoContext(ctx, "starting bot",
		slog.String("symbol", cfg.Scalp.Symbol),
		slog.String("mode", cfg.Mode),
	)

	// Channel capacities absorb bursts without coupling the producers to a
	// slow engine pass.
	feedTicks := make(chan domain.Tick, 512)
	// Paper mode interposes a pump that marks the simulator to the latest
	// trade price before the engine sees the tick.
	engineTicks := (<-chan domain.Tick)(feedTicks)
	var marked chan domain.Tick
	if deps.PaperGateway != nil {
		marked = make(chan domain.Tick, 512)
		engineTicks = marked
	}
	conns := make(chan domain.ConnState, 8)
	balances := make(chan domain.BalanceUpdate, 4)
	filters := make(chan domain.FilterUpdate, 4)
	fills := make(chan domain.FillEvent, 16)

	guard := executor.NewGuard(
		deps.Gateway,
		cfg.Scalp.Symbol,
		cfg.Scalp.Cooldown.Duration,
		fills,
		a.logger,
	)

	eval := signal.NewEvaluator(signal.Params{
		WindowSec:      cfg.Scalp.WindowSec,
		VolFactor:      cfg.Scalp.VolFactor,
		ReboundPct:     cfg.Scalp.ReboundPct,
		BreakoutPct:    cfg.Scalp.BreakoutPct,
		MomentumPct:    cfg.Scalp.MomentumPct,
		MaxBarStale:    cfg.Scalp.MaxBarStale.Duration,
		MaxTickLatency: cfg.Scalp.MaxTickLatency.Duration,
	})

	eng := engine.New(
		engine.Config{
			Symbol:         cfg.Scalp.Symbol,
			QuoteAsset:     cfg.Sizing.QuoteAsset,
			MaxSlots:       cfg.Scalp.MaxSlots,
			WindowSec:      cfg.Scalp.WindowSec,
			BudgetUSD:      cfg.Sizing.BudgetUSD,
			BudgetFraction: cfg.Sizing.BudgetFraction,
			Exits: engine.ExitParams{
				TakeProfitPct:    cfg.Scalp.TakeProfitPct,
				StopLossPct:      cfg.Scalp.StopLossPct,
				BreakevenArmPct:  cfg.Scalp.BreakevenArmPct,
				BreakevenLockPct: cfg.Scalp.BreakevenLockPct,
				TrailArmPct:      cfg.Scalp.TrailArmPct,
				TrailPct:         cfg.Scalp.TrailPct,
				Timeout:          cfg.Scalp.PositionTimeout.Duration,
			},
			StatsWindow:   cfg.Poll.StatsWindow.Duration,
			SnapshotEvery: cfg.Poll.SnapshotEvery.Duration,
		},
		market.NewAggregator(cfg.Scalp.BarRetention),
		eval,
		guard,
		engine.Inputs{Ticks: engineTicks, Conns: conns, Balances: balances, Filters: filters},
		deps.Notifier,
		deps.Publisher,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	if deps.PaperGateway != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t, ok := <-feedTicks:
					if !ok {
						close(marked)
						return nil
					}
					deps.PaperGateway.UpdatePrice(t.Price)
					select {
					case marked <- t:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	tradeFeed := feed.NewTradeFeed(cfg.Binance.WsHost, cfg.Scalp.Symbol, feedTicks, conns, a.logger)
	g.Go(func() error {
		return tradeFeed.Run(ctx)
	})

	accountSvc := service.NewAccountService(
		deps.Gateway,
		cfg.Scalp.Symbol,
		cfg.Poll.BalanceRefresh.Duration,
		cfg.Poll.FilterRefresh.Duration,
		fills,
		balances,
		filters,
		a.logger,
	)
	g.Go(func() error {
		return accountSvc.Run(ctx)
	})

	g.Go(func() error {
		return eng.Run(ctx)
	})

	if cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				APIKey:      cfg.Server.APIKey,
			},
			server.Handlers{
				Health: handler.NewHealthHandler(a.logger),
				Status: handler.NewStatusHandler(cfg.Mode, eng.Snapshot),
				Bars:   handler.NewBarsHandler(eng.Snapshot),
				Stats:  handler.NewStatsHandler(eng.Snapshot),
			},
			a.logger,
		)
		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
