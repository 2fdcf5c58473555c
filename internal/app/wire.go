package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/piyawong/ranking-relay-sub001/internal/blob/s3"
	"github.com/piyawong/ranking-relay-sub001/internal/cache/redis"
	"github.com/piyawong/ranking-relay-sub001/internal/config"
	"github.com/piyawong/ranking-relay-sub001/internal/domain"
	"github.com/piyawong/ranking-relay-sub001/internal/notify"
	"github.com/piyawong/ranking-relay-sub001/internal/store/postgres"
)

// Dependencies bundles the external collaborators the operating modes need.
type Dependencies struct {
	Records     domain.TradeRecordStore
	PriceMirror domain.PriceMirror // nil when Redis is disabled
	BlobWriter  *s3blob.Writer     // nil when archival is disabled
	Notifier    *notify.Notifier   // nil when no channel is configured
}

// needsBlob reports whether the mode archives settlements to S3.
func needsBlob(cfg *config.Config) bool {
	switch cfg.Mode {
	case "archive":
		return true
	case "full":
		return cfg.Archive.Enabled
	default:
		return false
	}
}

// Wire constructs the concrete dependency implementations and returns them
// with a cleanup function to be called on shutdown. A storage connectivity
// failure here is fatal: the loop can do nothing useful without its store.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// PostgreSQL — required by every mode.
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Records = postgres.NewTradeRecordStore(pgClient.Pool())

	// Redis price mirror — optional.
	if cfg.Redis.Enabled {
		rdClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			// The mirror is a convenience for dashboard readers, not a
			// correctness dependency. Run without it.
			logger.Warn("redis unavailable, price mirror disabled", slog.String("error", err.Error()))
		} else {
			closers = append(closers, func() { _ = rdClient.Close() })
			deps.PriceMirror = redis.NewPriceMirror(rdClient)
		}
	}

	// S3 — only for modes that archive.
	if needsBlob(cfg) {
		blobClient, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := blobClient.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 health: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(blobClient)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
