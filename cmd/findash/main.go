package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"findash/internal/cache"
	"findash/internal/cli"
	"findash/internal/config"
	apphttp "findash/internal/http"
	applog "findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	store := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	app, err := cli.NewApp(context.Background(), cfg, logger, store)
	if err != nil {
		logger.Error("Failed to initialize", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager()
	caches.Register("narratives", app.Narratives.Memo())

	var refreshWorker *worker.RefreshWorker
	if app.Bus != nil {
		var refreshLog worker.RefreshLog
		if app.Store != nil {
			refreshLog = app.Store
		}
		refreshWorker = worker.NewRefreshWorker(app.Loader, app.Narratives, refreshLog)
		caches.Register("refresh_requests", refreshWorker.Seen())
	}
	caches.StartCleanup(cfg.CacheCleanup)

	if app.Store != nil {
		if n, err := app.Store.PurgeNarratives(context.Background(), time.Now().Add(-cfg.NarrativeTTL)); err != nil {
			logger.Warn("Failed to purge expired narratives", applog.FieldError, err)
		} else if n > 0 {
			logger.Info("Purged expired narratives", "count", n)
		}
	}

	rateLimit := ratelimit.DefaultConfig()
	rateLimit.Requests = cfg.RateLimit
	rateLimit.Window = cfg.RateWindow

	srv := apphttp.NewServer(":"+cfg.Port, app.Service,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithRateLimit(rateLimit),
		apphttp.WithAllowedOrigins(cfg.AllowedOrigins),
		apphttp.WithTrustedProxies(cfg.TrustedProxies))

	ctx, done := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if err := app.Close(); err != nil {
			logger.Warn("Cleanup error", applog.FieldError, err)
		}
	})

	if refreshWorker != nil {
		go func() {
			consumer := logger.WithComponent(applog.ComponentWorker)
			consumer.Info("Consuming refresh requests", "queue", cfg.AMQPQueue)
			if err := app.Bus.ConsumeRefresh(ctx, refreshWorker.HandleRefresh); err != nil && !errors.Is(err, context.Canceled) {
				consumer.Error("Refresh consumption stopped", applog.FieldError, err)
			}
		}()
	}

	// Warm the snapshot so the first request does not pay for the load.
	go func() {
		ds, err := app.Loader.Snapshot(ctx)
		if err != nil {
			logger.WithComponent(applog.ComponentLoader).Warn("Initial snapshot load failed", applog.FieldError, err)
			return
		}
		logger.WithComponent(applog.ComponentLoader).Info("Initial snapshot loaded",
			applog.FieldDatasetID, ds.ID,
			applog.FieldRows, len(ds.Records))
	}()

	logger.Info("Starting findash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"narrative", app.Narratives.Enabled(),
		"refresh_bus", app.Bus != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
