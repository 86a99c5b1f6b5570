// Package config defines the top-level configuration for the signal bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SIGBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Feed     FeedConfig     `toml:"feed"`
	Jupiter  JupiterConfig  `toml:"jupiter"`
	Jito     JitoConfig     `toml:"jito"`
	Solana   SolanaConfig   `toml:"solana"`
	Trade    TradeConfig    `toml:"trade"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the Solana signing key. Either a raw base58 private key
// or an encrypted key file plus password must be provided for trading modes.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// FeedConfig holds the Telegram Bot API parameters for the signal feed.
type FeedConfig struct {
	BotToken string `toml:"bot_token"`
	// ChatID restricts the feed to messages from one chat; empty accepts all.
	ChatID string `toml:"chat_id"`
	// PollTimeoutSec is the long-poll timeout passed to getUpdates.
	PollTimeoutSec int `toml:"poll_timeout_sec"`
}

// JupiterConfig holds the quote/swap and price service endpoints.
type JupiterConfig struct {
	QuoteHost string `toml:"quote_host"`
	PriceHost string `toml:"price_host"`
}

// JitoConfig holds the bundle relay parameters.
type JitoConfig struct {
	BlockEngineURL string `toml:"block_engine_url"`
	// TipSOL is the priority-fee transfer attached to every bundle.
	TipSOL float64 `toml:"tip_sol"`
	// TipAccounts overrides the built-in tip account set when non-empty.
	TipAccounts    []string `toml:"tip_accounts"`
	PollInterval   duration `toml:"poll_interval"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
}

// SolanaConfig holds the RPC node endpoint.
type SolanaConfig struct {
	RPCURL string `toml:"rpc_url"`
}

// TradeConfig holds execution parameters shared by the buy and sell paths.
type TradeConfig struct {
	// BuyAmountSOL is the SOL spent on every buy signal.
	BuyAmountSOL float64 `toml:"buy_amount_sol"`
	SlippageBps  int     `toml:"slippage_bps"`
	// InputMint is the quote currency of every swap (wrapped SOL).
	InputMint string `toml:"input_mint"`
	// DedupTTL suppresses re-execution of an identical signal within the window.
	DedupTTL duration `toml:"dedup_ttl"`
	// ExitLockTTL bounds how long a per-asset exit lock can be held; it must
	// exceed the bundle confirmation timeout.
	ExitLockTTL duration `toml:"exit_lock_ttl"`
}

// MonitorConfig holds stop-loss monitor parameters.
type MonitorConfig struct {
	// ScanInterval is the pause between positions, bounding request rate
	// against the price service.
	ScanInterval duration `toml:"scan_interval"`
	// MaxPriceStale bounds how old a cached price may be when the live price
	// lookup fails.
	MaxPriceStale duration `toml:"max_price_stale"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for fill archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls fill-history archival.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// wrappedSOLMint is the canonical wrapped-SOL mint, the quote side of every swap.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			PollTimeoutSec: 30,
		},
		Jupiter: JupiterConfig{
			QuoteHost: "https://quote-api.jup.ag/v6",
			PriceHost: "https://api.jup.ag",
		},
		Jito: JitoConfig{
			BlockEngineURL: "https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
			TipSOL:         0.001,
			PollInterval:   duration{1 * time.Second},
			ConfirmTimeout: duration{5 * time.Minute},
		},
		Solana: SolanaConfig{
			RPCURL: "https://api.mainnet-beta.solana.com",
		},
		Trade: TradeConfig{
			BuyAmountSOL: 0.1,
			SlippageBps:  5000,
			InputMint:    wrappedSOLMint,
			DedupTTL:     duration{2 * time.Minute},
			ExitLockTTL:  duration{6 * time.Minute},
		},
		Monitor: MonitorConfig{
			ScanInterval:  duration{1 * time.Second},
			MaxPriceStale: duration{15 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "signalbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "signalbot-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — every mode signs transactions (the monitor sells too).
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Feed — only the trade mode consumes signals.
	if strings.ToLower(c.Mode) == "trade" && c.Feed.BotToken == "" {
		errs = append(errs, "feed: bot_token is required for trade mode")
	}
	if c.Feed.PollTimeoutSec < 1 {
		errs = append(errs, "feed: poll_timeout_sec must be >= 1")
	}

	if c.Jupiter.QuoteHost == "" {
		errs = append(errs, "jupiter: quote_host must not be empty")
	}
	if c.Jupiter.PriceHost == "" {
		errs = append(errs, "jupiter: price_host must not be empty")
	}

	if c.Jito.BlockEngineURL == "" {
		errs = append(errs, "jito: block_engine_url must not be empty")
	}
	if c.Jito.TipSOL <= 0 {
		errs = append(errs, "jito: tip_sol must be > 0")
	}
	if c.Jito.PollInterval.Duration <= 0 {
		errs = append(errs, "jito: poll_interval must be > 0")
	}
	if c.Jito.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "jito: confirm_timeout must be > 0")
	}

	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}

	if c.Trade.BuyAmountSOL <= 0 {
		errs = append(errs, "trade: buy_amount_sol must be > 0")
	}
	if c.Trade.SlippageBps <= 0 {
		errs = append(errs, "trade: slippage_bps must be > 0")
	}
	if c.Trade.InputMint == "" {
		errs = append(errs, "trade: input_mint must not be empty")
	}
	if c.Trade.ExitLockTTL.Duration <= c.Jito.ConfirmTimeout.Duration {
		errs = append(errs, "trade: exit_lock_ttl must exceed jito.confirm_timeout")
	}

	if c.Monitor.ScanInterval.Duration <= 0 {
		errs = append(errs, "monitor: scan_interval must be > 0")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
