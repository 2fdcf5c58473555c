package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RELAYRANK_* environment overrides, and returns
// the final Config. The caller should invoke Config.Validate() after Load.
// A missing file is not an error: defaults plus env overrides still form a
// usable configuration. Use LoadFile when the operator named the path
// explicitly and a typo should fail fast.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	// Load .env if present (silently ignore when missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadFile is Load without the missing-file leniency: the file at path must
// exist. Intended for paths the operator passed explicitly, where silently
// falling back to defaults would mask a typo.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Load(path)
}

// applyEnvOverrides reads well-known RELAYRANK_* variables and overwrites the
// corresponding fields when set, so operators can inject secrets at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Chain
	setStr(&cfg.Chain.PrimaryRPC, "RELAYRANK_CHAIN_PRIMARY_RPC")
	setStr(&cfg.Chain.SecondaryRPC, "RELAYRANK_CHAIN_SECONDARY_RPC")
	setInt64(&cfg.Chain.ChainID, "RELAYRANK_CHAIN_ID")
	setDuration(&cfg.Chain.ProbeTimeout, "RELAYRANK_CHAIN_PROBE_TIMEOUT")
	setDuration(&cfg.Chain.CallTimeout, "RELAYRANK_CHAIN_CALL_TIMEOUT")

	// Price
	setStr(&cfg.Price.OracleAddress, "RELAYRANK_PRICE_ORACLE_ADDRESS")
	setStr(&cfg.Price.ApiURL, "RELAYRANK_PRICE_API_URL")
	setDuration(&cfg.Price.ApiTimeout, "RELAYRANK_PRICE_API_TIMEOUT")
	setDuration(&cfg.Price.MaxAge, "RELAYRANK_PRICE_MAX_AGE")
	setFloat64(&cfg.Price.FallbackUsd, "RELAYRANK_PRICE_FALLBACK_USD")

	// Reconcile
	setDuration(&cfg.Reconcile.TickInterval, "RELAYRANK_RECONCILE_TICK_INTERVAL")
	setInt(&cfg.Reconcile.BatchSize, "RELAYRANK_RECONCILE_BATCH_SIZE")
	setFloat64(&cfg.Reconcile.MinOnchainValueUsd, "RELAYRANK_RECONCILE_MIN_ONCHAIN_VALUE_USD")
	setDuration(&cfg.Reconcile.ShutdownGrace, "RELAYRANK_RECONCILE_SHUTDOWN_GRACE")

	// Archive
	setBool(&cfg.Archive.Enabled, "RELAYRANK_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "RELAYRANK_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "RELAYRANK_ARCHIVE_INTERVAL")

	// Postgres
	setStr(&cfg.Postgres.DSN, "RELAYRANK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RELAYRANK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RELAYRANK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RELAYRANK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RELAYRANK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RELAYRANK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RELAYRANK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RELAYRANK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RELAYRANK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RELAYRANK_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setBool(&cfg.Redis.Enabled, "RELAYRANK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RELAYRANK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RELAYRANK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RELAYRANK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RELAYRANK_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "RELAYRANK_REDIS_TLS_ENABLED")

	// S3
	setStr(&cfg.S3.Endpoint, "RELAYRANK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RELAYRANK_S3_REGION")
	setStr(&cfg.S3.Bucket, "RELAYRANK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RELAYRANK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RELAYRANK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RELAYRANK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RELAYRANK_S3_FORCE_PATH_STYLE")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "RELAYRANK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RELAYRANK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RELAYRANK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RELAYRANK_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.Mode, "RELAYRANK_MODE")
	setStr(&cfg.LogLevel, "RELAYRANK_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
