package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCALPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SCALPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.RestHost, "SCALPBOT_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "SCALPBOT_BINANCE_WS_HOST")
	setStr(&cfg.Binance.ApiKey, "SCALPBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "SCALPBOT_BINANCE_API_SECRET")
	setInt64(&cfg.Binance.RecvWindowMs, "SCALPBOT_BINANCE_RECV_WINDOW_MS")

	// ── Scalp ──
	setStr(&cfg.Scalp.Symbol, "SCALPBOT_SCALP_SYMBOL")
	setInt(&cfg.Scalp.WindowSec, "SCALPBOT_SCALP_WINDOW_SEC")
	setFloat64(&cfg.Scalp.VolFactor, "SCALPBOT_SCALP_VOL_FACTOR")
	setFloat64(&cfg.Scalp.ReboundPct, "SCALPBOT_SCALP_REBOUND_PCT")
	setFloat64(&cfg.Scalp.BreakoutPct, "SCALPBOT_SCALP_BREAKOUT_PCT")
	setFloat64(&cfg.Scalp.MomentumPct, "SCALPBOT_SCALP_MOMENTUM_PCT")
	setFloat64(&cfg.Scalp.TakeProfitPct, "SCALPBOT_SCALP_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Scalp.StopLossPct, "SCALPBOT_SCALP_STOP_LOSS_PCT")
	setFloat64(&cfg.Scalp.BreakevenArmPct, "SCALPBOT_SCALP_BREAKEVEN_ARM_PCT")
	setFloat64(&cfg.Scalp.BreakevenLockPct, "SCALPBOT_SCALP_BREAKEVEN_LOCK_PCT")
	setFloat64(&cfg.Scalp.TrailArmPct, "SCALPBOT_SCALP_TRAIL_ARM_PCT")
	setFloat64(&cfg.Scalp.TrailPct, "SCALPBOT_SCALP_TRAIL_PCT")
	setDuration(&cfg.Scalp.PositionTimeout, "SCALPBOT_SCALP_POSITION_TIMEOUT")
	setDuration(&cfg.Scalp.Cooldown, "SCALPBOT_SCALP_COOLDOWN")
	setDuration(&cfg.Scalp.MaxBarStale, "SCALPBOT_SCALP_MAX_BAR_STALE")
	setDuration(&cfg.Scalp.MaxTickLatency, "SCALPBOT_SCALP_MAX_TICK_LATENCY")
	setInt(&cfg.Scalp.MaxSlots, "SCALPBOT_SCALP_MAX_SLOTS")
	setInt(&cfg.Scalp.BarRetention, "SCALPBOT_SCALP_BAR_RETENTION")

	// ── Sizing ──
	setStr(&cfg.Sizing.QuoteAsset, "SCALPBOT_SIZING_QUOTE_ASSET")
	setStr(&cfg.Sizing.BaseAsset, "SCALPBOT_SIZING_BASE_ASSET")
	setFloat64(&cfg.Sizing.BudgetUSD, "SCALPBOT_SIZING_BUDGET_USD")
	setFloat64(&cfg.Sizing.BudgetFraction, "SCALPBOT_SIZING_BUDGET_FRACTION")

	// ── Poll ──
	setDuration(&cfg.Poll.BalanceRefresh, "SCALPBOT_POLL_BALANCE_REFRESH")
	setDuration(&cfg.Poll.FilterRefresh, "SCALPBOT_POLL_FILTER_REFRESH")
	setDuration(&cfg.Poll.StatsWindow, "SCALPBOT_POLL_STATS_WINDOW")
	setDuration(&cfg.Poll.SnapshotEvery, "SCALPBOT_POLL_SNAPSHOT_EVERY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SCALPBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SCALPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCALPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCALPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCALPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCALPBOT_REDIS_MAX_RETRIES")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCALPBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCALPBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SCALPBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SCALPBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCALPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCALPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SCALPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SCALPBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SCALPBOT_MODE")
	setStr(&cfg.LogLevel, "SCALPBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
