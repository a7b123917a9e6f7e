package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amvega/scalpbot/internal/cache/redis"
	"github.com/amvega/scalpbot/internal/config"
	"github.com/amvega/scalpbot/internal/domain"
	"github.com/amvega/scalpbot/internal/notify"
	"github.com/amvega/scalpbot/internal/platform/binance"
	"github.com/amvega/scalpbot/internal/platform/paper"
)

// defaultPaperBalance seeds the simulated quote balance for paper runs.
const defaultPaperBalance = 1000

// paperFilters stand in for exchange filters when the paper gateway starts
// before the first real filter refresh would matter. They mirror BTCUSDT's
// spot filters.
var paperFilters = domain.SymbolFilters{
	StepSize:    0.00001,
	MinQty:      0.00001,
	TickSize:    0.01,
	MinNotional: 5,
}

// Dependencies bundles the mode-independent dependencies the run path
// needs. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Gateway executes orders. In paper mode PaperGateway aliases it so the
	// feed can push mark prices into the simulator.
	Gateway      domain.ExchangeGateway
	PaperGateway *paper.Gateway

	// Publisher pushes engine snapshots to Redis; nil when disabled.
	Publisher domain.SnapshotPublisher

	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations for the
// configured mode and returns them with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Exchange gateway ---
	switch strings.ToLower(cfg.Mode) {
	case "live":
		deps.Gateway = binance.NewClient(
			cfg.Binance.RestHost,
			cfg.Binance.ApiKey,
			cfg.Binance.ApiSecret,
			cfg.Binance.RecvWindowMs,
		)
	case "paper":
		pg := paper.NewGateway(
			cfg.Scalp.Symbol,
			cfg.Sizing.BaseAsset,
			cfg.Sizing.QuoteAsset,
			defaultPaperBalance,
			paperFilters,
		)
		deps.Gateway = pg
		deps.PaperGateway = pg
	default:
		return nil, nil, fmt.Errorf("wire: unsupported mode %q", cfg.Mode)
	}

	// --- Redis snapshot publisher (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Publisher = redis.NewSnapshotPublisher(redisClient, cfg.Scalp.Symbol)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
