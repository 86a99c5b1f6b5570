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
// built-in defaults, applies SIGBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SIGBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SIGBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SIGBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SIGBOT_WALLET_KEY_PASSWORD")

	// ── Feed ──
	setStr(&cfg.Feed.BotToken, "SIGBOT_FEED_BOT_TOKEN")
	setStr(&cfg.Feed.ChatID, "SIGBOT_FEED_CHAT_ID")
	setInt(&cfg.Feed.PollTimeoutSec, "SIGBOT_FEED_POLL_TIMEOUT_SEC")

	// ── Jupiter ──
	setStr(&cfg.Jupiter.QuoteHost, "SIGBOT_JUPITER_QUOTE_HOST")
	setStr(&cfg.Jupiter.PriceHost, "SIGBOT_JUPITER_PRICE_HOST")

	// ── Jito ──
	setStr(&cfg.Jito.BlockEngineURL, "SIGBOT_JITO_BLOCK_ENGINE_URL")
	setFloat64(&cfg.Jito.TipSOL, "SIGBOT_JITO_TIP_SOL")
	setStringSlice(&cfg.Jito.TipAccounts, "SIGBOT_JITO_TIP_ACCOUNTS")
	setDuration(&cfg.Jito.PollInterval, "SIGBOT_JITO_POLL_INTERVAL")
	setDuration(&cfg.Jito.ConfirmTimeout, "SIGBOT_JITO_CONFIRM_TIMEOUT")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SIGBOT_SOLANA_RPC_URL")

	// ── Trade ──
	setFloat64(&cfg.Trade.BuyAmountSOL, "SIGBOT_TRADE_BUY_AMOUNT_SOL")
	setInt(&cfg.Trade.SlippageBps, "SIGBOT_TRADE_SLIPPAGE_BPS")
	setStr(&cfg.Trade.InputMint, "SIGBOT_TRADE_INPUT_MINT")
	setDuration(&cfg.Trade.DedupTTL, "SIGBOT_TRADE_DEDUP_TTL")
	setDuration(&cfg.Trade.ExitLockTTL, "SIGBOT_TRADE_EXIT_LOCK_TTL")

	// ── Monitor ──
	setDuration(&cfg.Monitor.ScanInterval, "SIGBOT_MONITOR_SCAN_INTERVAL")
	setDuration(&cfg.Monitor.MaxPriceStale, "SIGBOT_MONITOR_MAX_PRICE_STALE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SIGBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SIGBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SIGBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SIGBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SIGBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SIGBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SIGBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SIGBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SIGBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SIGBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SIGBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SIGBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SIGBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SIGBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SIGBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SIGBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SIGBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SIGBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SIGBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SIGBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SIGBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SIGBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SIGBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SIGBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SIGBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SIGBOT_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SIGBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SIGBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SIGBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SIGBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SIGBOT_MODE")
	setStr(&cfg.LogLevel, "SIGBOT_LOG_LEVEL")
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
