// Package config defines the top-level configuration for the settlement
// reconciliation service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RELAYRANK_* environment
// variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Price     PriceConfig     `toml:"price"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Archive   ArchiveConfig   `toml:"archive"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds blockchain endpoint parameters.
type ChainConfig struct {
	// PrimaryRPC is the preferred endpoint: an http(s) URL or an IPC
	// socket path.
	PrimaryRPC string `toml:"primary_rpc"`
	// SecondaryRPC is an optional second configured endpoint probed after
	// the primary.
	SecondaryRPC string `toml:"secondary_rpc"`
	ChainID      int64  `toml:"chain_id"`
	// ProbeTimeout bounds one endpoint health probe.
	ProbeTimeout duration `toml:"probe_timeout"`
	// CallTimeout bounds one tx/receipt fetch against a resolved endpoint.
	CallTimeout duration `toml:"call_timeout"`
	// TrackedAssets overrides the built-in tracked token table when set.
	TrackedAssets []AssetConfig `toml:"tracked_assets"`
}

// AssetConfig describes one tracked token contract.
type AssetConfig struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
	// Kind is "stable" or "wrapped_native".
	Kind string `toml:"kind"`
}

// PriceConfig holds native-asset price resolution parameters.
type PriceConfig struct {
	// OracleAddress is the Chainlink-style USD aggregator contract.
	OracleAddress string `toml:"oracle_address"`
	// ApiURL is the off-chain price API; it must answer GET with a JSON
	// body containing a "price" number.
	ApiURL     string   `toml:"api_url"`
	ApiTimeout duration `toml:"api_timeout"`
	// MaxAge is the cache validity window.
	MaxAge duration `toml:"max_age"`
	// FallbackUsd is the last-resort constant used when every source fails
	// and no cached quote exists.
	FallbackUsd float64 `toml:"fallback_usd"`
}

// ReconcileConfig holds the reconciliation loop parameters.
type ReconcileConfig struct {
	TickInterval duration `toml:"tick_interval"`
	BatchSize    int      `toml:"batch_size"`
	// MinOnchainValueUsd is the threshold below which a decoded on-chain
	// value is treated as a decode failure.
	MinOnchainValueUsd float64  `toml:"min_onchain_value_usd"`
	ShutdownGrace      duration `toml:"shutdown_grace"`
}

// ArchiveConfig holds settlement cold-storage parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
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

// RedisConfig holds Redis connection parameters for the price mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration to support TOML string decoding ("5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with documented default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:      1,
			ProbeTimeout: duration{5 * time.Second},
			CallTimeout:  duration{8 * time.Second},
		},
		Price: PriceConfig{
			// Chainlink ETH/USD aggregator on mainnet.
			OracleAddress: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419",
			ApiTimeout:    duration{4 * time.Second},
			MaxAge:        duration{time.Minute},
			FallbackUsd:   2000,
		},
		Reconcile: ReconcileConfig{
			TickInterval:       duration{5 * time.Second},
			BatchSize:          10,
			MinOnchainValueUsd: 0.01,
			ShutdownGrace:      duration{10 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "relayrank-archive",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"settlement_resolved"},
		},
		Mode:     "reconcile",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"reconcile": true,
	"archive":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validAssetKinds enumerates the accepted tracked-asset kinds.
var validAssetKinds = map[string]bool{
	"stable":         true,
	"wrapped_native": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: reconcile, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain — a primary endpoint is strongly recommended but not strictly
	// required: the public fallback pool still gives the resolver
	// candidates to probe.
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Chain.ProbeTimeout.Duration <= 0 {
		errs = append(errs, "chain: probe_timeout must be positive")
	}
	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be positive")
	}
	for i, a := range c.Chain.TrackedAssets {
		if a.Symbol == "" || a.Address == "" {
			errs = append(errs, fmt.Sprintf("chain: tracked_assets[%d]: symbol and address are required", i))
		}
		if a.Decimals < 0 || a.Decimals > 36 {
			errs = append(errs, fmt.Sprintf("chain: tracked_assets[%d]: decimals must be 0-36, got %d", i, a.Decimals))
		}
		if !validAssetKinds[a.Kind] {
			errs = append(errs, fmt.Sprintf("chain: tracked_assets[%d]: kind must be stable or wrapped_native, got %q", i, a.Kind))
		}
	}

	// Price
	if c.Price.OracleAddress == "" && c.Price.ApiURL == "" {
		errs = append(errs, "price: at least one of oracle_address or api_url must be set")
	}
	if c.Price.MaxAge.Duration <= 0 {
		errs = append(errs, "price: max_age must be positive")
	}
	if c.Price.FallbackUsd <= 0 {
		errs = append(errs, "price: fallback_usd must be > 0")
	}

	// Reconcile
	if c.Reconcile.TickInterval.Duration <= 0 {
		errs = append(errs, "reconcile: tick_interval must be positive")
	}
	if c.Reconcile.BatchSize < 1 {
		errs = append(errs, "reconcile: batch_size must be >= 1")
	}
	if c.Reconcile.MinOnchainValueUsd < 0 {
		errs = append(errs, "reconcile: min_onchain_value_usd must be >= 0")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archive is enabled")
		}
	}

	// Postgres
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
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// Notify — token and chat ID go together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
