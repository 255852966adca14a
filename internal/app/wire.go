package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/triarb/internal/blob/s3"
	"github.com/alanyoungcy/triarb/internal/cache/redis"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/store/postgres"
)

// Dependencies bundles the optional backing services. A disabled backend
// leaves its fields nil and every consumer treats nil as "off".
type Dependencies struct {
	Metrics *metrics.Metrics

	BookCache   domain.BookCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	Opportunities domain.OpportunityStore
	Replays       domain.ReplayStore

	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier

	// Checks feeds /api/health, keyed by backend name.
	Checks map[string]handler.Check
}

// Wire connects every enabled backend and returns a cleanup that releases
// them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.BookCache = redis.NewBookCache(rc, cfg.Redis.TopTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(rc, int64(cfg.Redis.StreamMaxLen))
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.Checks["redis"] = rc.Ping
	}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
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
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		store := postgres.NewOpportunityStore(pg.Pool())
		deps.Opportunities = store
		deps.Replays = store
		deps.Checks["postgres"] = pg.Ping
	}

	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.BlobWriter = s3blob.NewWriter(sc)
		deps.BlobReader = s3blob.NewReader(sc)
		deps.Checks["s3"] = sc.Health
	}

	deps.Notifier = notify.NewNotifier(senders(cfg.Notify), cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func senders(cfg config.NotifyConfig) []notify.Sender {
	var out []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return out
}
