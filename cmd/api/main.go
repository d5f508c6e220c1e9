package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownGrace = 30 * time.Second

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Open(ctx, "api")
	if err != nil {
		bootstrapLogger().Error(ctx, "failed to bootstrap api", err)
		os.Exit(1)
	}
	defer rt.Close(ctx)
	cfg, logg := rt.Config, rt.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	remote, err := rt.RemoteStore(ctx, reg)
	if err != nil {
		logg.Error(ctx, "failed to create media store", err)
		os.Exit(1)
	}
	cache, err := rt.ProductCache()
	if err != nil {
		logg.Error(ctx, "failed to create product cache", err)
		os.Exit(1)
	}
	productService, err := rt.ProductService(remote, cache)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}
	repairService, err := rt.RepairService(cache)
	if err != nil {
		logg.Error(ctx, "failed to create repair service", err)
		os.Exit(1)
	}

	ready := map[string]controllers.Pinger{"db": rt.DB, "redis": nil}
	var idem pkgredis.IdempotencyStore
	if rt.Redis != nil {
		ready["redis"] = rt.Redis
		idem = rt.Redis
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"media_driver": cfg.MediaStore.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			Products:    productService,
			Repair:      repairService,
			Ready:       ready,
			Idempotency: idem,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
			Gatherer:    reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
