package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/swapmarket/internal/blob/s3"
	"github.com/alanyoungcy/swapmarket/internal/cache/redis"
	"github.com/alanyoungcy/swapmarket/internal/config"
	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/notify"
	"github.com/alanyoungcy/swapmarket/internal/platform/icon"
	"github.com/alanyoungcy/swapmarket/internal/server/handler"
	"github.com/alanyoungcy/swapmarket/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional members are nil when their backing service is
// not configured for the mode.
type Dependencies struct {
	// Market data
	Source domain.MarketDataSource

	// Stores
	SwapStore  *postgres.FilledSwapStore
	AuditStore domain.AuditStore

	// Caches
	AssetCache    domain.AssetCache
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	// Notifier delivers operator alerts. It is never nil; with no channel
	// configured it drops everything.
	Notifier *notify.Notifier

	// HealthChecks checks every connected backend.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: map[string]handler.HealthCheck{}}

	// --- ICON JSON-RPC ---
	if config.RunsSession(cfg.Mode) {
		deps.Source = icon.NewClient(cfg.ICON.Endpoint, cfg.ICON.Exchange, cfg.ICON.PageSize, cfg.ICON.Timeout.Duration)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled || config.NeedsPostgres(cfg.Mode) {
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

		pool := pgClient.Pool()
		deps.SwapStore = postgres.NewFilledSwapStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.AssetCache = redis.NewAssetCache(redisClient, cfg.Redis.AssetTTL.Duration)
	deps.SnapshotCache = redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.HealthChecks["redis"] = redisClient.Ping

	// --- S3 blob storage ---
	if config.NeedsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
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
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.SwapStore, deps.AuditStore)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	deps.Notifier = newNotifier(cfg.Notify, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.SwapStore != nil),
		slog.Bool("s3", deps.Archiver != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)
	return deps, cleanup, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Events, cfg.Cooldown.Duration, logger)
}
