// Package bootstrap assembles the shared runtime every binary starts from.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/angelmondragon/storefront-backend/internal/consistency"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/media"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// Runtime holds the process-wide clients. Redis is nil when not configured.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
}

// LoadConfig reads .env (if present) and the environment, then builds the
// configured logger.
func LoadConfig(serviceName string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		FilePath:    cfg.App.LogFile,
		MaxSizeMB:   cfg.App.LogMaxSizeMB,
		MaxBackups:  cfg.App.LogBackups,
	})
	return cfg, logg, nil
}

// Open loads configuration and connects the database and, when configured, redis.
func Open(ctx context.Context, serviceName string) (*Runtime, error) {
	cfg, logg, err := LoadConfig(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Connect(ctx, cfg, logg)
}

// Connect dials the stores for an already loaded configuration.
func Connect(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Runtime, error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logg, DB: dbClient}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	if cfg.Redis.Configured() {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Redis = client
	} else {
		logg.Warn(ctx, "redis not configured; product cache and idempotency disabled")
	}
	return rt, nil
}

func (rt *Runtime) Close(ctx context.Context) {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing redis", err)
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing database", err)
		}
	}
}

// RemoteStore builds the configured media store, instrumented on reg.
func (rt *Runtime) RemoteStore(ctx context.Context, reg prometheus.Registerer) (storage.Opener, error) {
	return media.NewRemoteStore(ctx, rt.Config.MediaStore, rt.Logger, metrics.NewMediaTransferMetrics(reg))
}

// ProductCache returns the redis-backed aggregate cache or a no-op.
func (rt *Runtime) ProductCache() (products.AggregateCache, error) {
	if rt.Redis == nil || !rt.Config.FeatureFlags.CacheEnabled {
		return products.NoopCache(), nil
	}
	return products.NewRedisCache(rt.Redis, rt.Config.Catalog.CacheTTL, rt.Logger)
}

// ProductService wires the aggregate write pipeline.
func (rt *Runtime) ProductService(remote storage.Opener, cache products.AggregateCache) (products.Service, error) {
	return rt.productService(afero.NewOsFs(), remote, cache)
}

func (rt *Runtime) productService(fs afero.Fs, remote storage.Opener, cache products.AggregateCache) (products.Service, error) {
	staging, err := media.NewStaging(fs, rt.Config.Staging.Dir)
	if err != nil {
		return nil, fmt.Errorf("staging area: %w", err)
	}
	intents := media.NewRepository(rt.DB.DB())
	mediaSvc, err := media.NewService(intents, staging, rt.Logger)
	if err != nil {
		return nil, err
	}
	return products.NewService(products.Deps{
		Repo:    products.NewRepository(rt.DB.DB()),
		Intents: intents,
		Media:   mediaSvc,
		Remote:  remote,
		DB:      rt.DB,
		Cache:   cache,
		Catalog: rt.Config.Catalog,
		URLFor:  rt.Config.MediaStore.URLFor,
		Logger:  rt.Logger,
	})
}

// RepairService wires the orphaned-product repair pass.
func (rt *Runtime) RepairService(cache consistency.Invalidator) (consistency.Service, error) {
	return consistency.NewService(consistency.NewRepository(rt.DB.DB()), rt.DB, cache, rt.Logger)
}

// SweepJob builds the stale upload intent sweep against remote.
func (rt *Runtime) SweepJob(remote storage.Opener) (cron.Job, error) {
	return cron.NewMediaIntentSweepJob(cron.MediaIntentSweepJobParams{
		Logger:    rt.Logger,
		Intents:   media.NewRepository(rt.DB.DB()),
		Remote:    remote,
		Retention: rt.Config.Cron.IntentRetention,
	})
}
