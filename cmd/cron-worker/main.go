package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	ctx := context.Background()
	rt, err := bootstrap.Open(ctx, "cron-worker")
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "failed to bootstrap cron worker", err)
		os.Exit(1)
	}
	defer rt.Close(ctx)
	cfg, logg := rt.Config, rt.Logger

	registry, err := buildRegistry(ctx, rt)
	if err == nil {
		registry, err = registry.Select(strings.Split(*only, ","))
	}
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}

	var lock cron.Lock = cron.NoopLock{}
	if rt.Redis != nil {
		lock, err = cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(cfg.App.Env)), 0)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "redis not configured; cron runs without a distributed lock")
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(ctx context.Context, rt *bootstrap.Runtime) (*cron.Registry, error) {
	remote, err := rt.RemoteStore(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	sweep, err := rt.SweepJob(remote)
	if err != nil {
		return nil, err
	}
	registry := cron.NewRegistry(sweep)

	if !rt.Config.Cron.RepairEnabled {
		return registry, nil
	}
	cache, err := rt.ProductCache()
	if err != nil {
		return nil, err
	}
	repairer, err := rt.RepairService(cache)
	if err != nil {
		return nil, err
	}
	repair, err := cron.NewCategoryRepairJob(rt.Logger, repairer)
	if err != nil {
		return nil, err
	}
	registry.Register(repair)
	return registry, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
