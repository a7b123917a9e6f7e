// Package config defines the top-level configuration for the scalper bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SCALPBOT_* environment
// variables.
type Config struct {
	Binance  BinanceConfig  `toml:"binance"`
	Scalp    ScalpConfig    `toml:"scalp"`
	Sizing   SizingConfig   `toml:"sizing"`
	Poll     PollConfig     `toml:"poll"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BinanceConfig holds exchange endpoints and API credentials.
type BinanceConfig struct {
	RestHost     string `toml:"rest_host"`
	WsHost       string `toml:"ws_host"`
	ApiKey       string `toml:"api_key"`
	ApiSecret    string `toml:"api_secret"`
	RecvWindowMs int64  `toml:"recv_window_ms"`
}

// ScalpConfig holds the fixed thresholds of the entry and exit rules. All
// *Pct fields are fractions (0.0006 = 0.06%).
type ScalpConfig struct {
	Symbol string `toml:"symbol"`

	// Entry gates and triggers.
	WindowSec      int      `toml:"window_sec"`
	VolFactor      float64  `toml:"vol_factor"`
	ReboundPct     float64  `toml:"rebound_pct"`
	BreakoutPct    float64  `toml:"breakout_pct"`
	MomentumPct    float64  `toml:"momentum_pct"`
	MaxBarStale    duration `toml:"max_bar_stale"`
	MaxTickLatency duration `toml:"max_tick_latency"`

	// Exit policy.
	TakeProfitPct    float64  `toml:"take_profit_pct"`
	StopLossPct      float64  `toml:"stop_loss_pct"`
	BreakevenArmPct  float64  `toml:"breakeven_arm_pct"`
	BreakevenLockPct float64  `toml:"breakeven_lock_pct"`
	TrailArmPct      float64  `toml:"trail_arm_pct"`
	TrailPct         float64  `toml:"trail_pct"`
	PositionTimeout  duration `toml:"position_timeout"`

	// Submission spacing and slot bound.
	Cooldown     duration `toml:"cooldown"`
	MaxSlots     int      `toml:"max_slots"`
	BarRetention int      `toml:"bar_retention"`
}

// SizingConfig holds the entry sizing policy: each slot is funded with a
// fixed USD budget, capped by a fraction of the free quote balance.
type SizingConfig struct {
	QuoteAsset     string  `toml:"quote_asset"`
	BaseAsset      string  `toml:"base_asset"`
	BudgetUSD      float64 `toml:"budget_usd"`
	BudgetFraction float64 `toml:"budget_fraction"`
}

// PollConfig holds the periodic task intervals.
type PollConfig struct {
	BalanceRefresh duration `toml:"balance_refresh"`
	FilterRefresh  duration `toml:"filter_refresh"`
	StatsWindow    duration `toml:"stats_window"`
	SnapshotEvery  duration `toml:"snapshot_every"`
}

// RedisConfig holds Redis connection parameters for the snapshot publisher.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// ServerConfig holds HTTP server parameters for the read-only status API.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "2s", "15m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "2s" or "15m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the reference scalping
// parameters for BTCUSDT spot.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			RestHost:     "https://api.binance.com",
			WsHost:       "wss://stream.binance.com:9443",
			RecvWindowMs: 5000,
		},
		Scalp: ScalpConfig{
			Symbol:           "BTCUSDT",
			WindowSec:        10,
			VolFactor:        1.00,
			ReboundPct:       0.0008,
			BreakoutPct:      0.0002,
			MomentumPct:      0.0005,
			MaxBarStale:      duration{3 * time.Second},
			MaxTickLatency:   duration{1500 * time.Millisecond},
			TakeProfitPct:    0.0006,
			StopLossPct:      0.0006,
			BreakevenArmPct:  0.0015,
			BreakevenLockPct: 0.0002,
			TrailArmPct:      0.0010,
			TrailPct:         0.0008,
			PositionTimeout:  duration{45 * time.Second},
			Cooldown:         duration{2 * time.Second},
			MaxSlots:         1,
			BarRetention:     120,
		},
		Sizing: SizingConfig{
			QuoteAsset:     "USDT",
			BaseAsset:      "BTC",
			BudgetUSD:      12,
			BudgetFraction: 0.98,
		},
		Poll: PollConfig{
			BalanceRefresh: duration{15 * time.Second},
			FilterRefresh:  duration{10 * time.Minute},
			StatsWindow:    duration{60 * time.Second},
			SnapshotEvery:  duration{time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency. It returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "live":
		if c.Binance.ApiKey == "" || c.Binance.ApiSecret == "" {
			return fmt.Errorf("config: live mode requires binance.api_key and binance.api_secret")
		}
	case "paper":
	default:
		return fmt.Errorf("config: unsupported mode %q (want \"live\" or \"paper\")", c.Mode)
	}

	if c.Scalp.Symbol == "" {
		return fmt.Errorf("config: scalp.symbol is required")
	}
	if c.Scalp.WindowSec < 2 {
		return fmt.Errorf("config: scalp.window_sec must be at least 2, got %d", c.Scalp.WindowSec)
	}
	if c.Scalp.MaxSlots < 1 {
		return fmt.Errorf("config: scalp.max_slots must be at least 1, got %d", c.Scalp.MaxSlots)
	}
	if c.Scalp.BarRetention < c.Scalp.WindowSec {
		return fmt.Errorf("config: scalp.bar_retention (%d) must cover scalp.window_sec (%d)",
			c.Scalp.BarRetention, c.Scalp.WindowSec)
	}
	if c.Scalp.Cooldown.Duration <= 0 {
		return fmt.Errorf("config: scalp.cooldown must be positive")
	}
	for name, v := range map[string]float64{
		"scalp.take_profit_pct": c.Scalp.TakeProfitPct,
		"scalp.stop_loss_pct":   c.Scalp.StopLossPct,
		"scalp.rebound_pct":     c.Scalp.ReboundPct,
		"scalp.breakout_pct":    c.Scalp.BreakoutPct,
		"scalp.momentum_pct":    c.Scalp.MomentumPct,
	} {
		if v < 0 {
			return fmt.Errorf("config: %s must not be negative, got %g", name, v)
		}
	}
	if c.Sizing.BudgetUSD <= 0 {
		return fmt.Errorf("config: sizing.budget_usd must be positive, got %g", c.Sizing.BudgetUSD)
	}
	if c.Sizing.BudgetFraction <= 0 || c.Sizing.BudgetFraction > 1 {
		return fmt.Errorf("config: sizing.budget_fraction must be in (0, 1], got %g", c.Sizing.BudgetFraction)
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port must be a valid port, got %d", c.Server.Port)
	}
	return nil
}
