package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)
	logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.ReminderTimezone)
		os.Exit(1)
	}

	m := metrics.New(cfg.MetricsNamespace)

	store, closeStore := cli.MustOpenStore(context.Background(), logger, cfg)

	var publisher ports.EventPublisher
	amqpClient, err := cli.ConnectAMQP(logger, cfg, m)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
	} else if amqpClient != nil {
		publisher = amqpClient
	}

	ledger := services.NewLedgerService(store, publisher, m)
	ledger.SetLocation(loc)
	if err := ledger.Seed(context.Background()); err != nil {
		logger.Error("Failed to seed defaults", "error", err)
		os.Exit(1)
	}

	statsCache := cache.NewLRUCache[any](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(time.Minute)

	statsSvc := services.NewStatsService(store, statsCache, m)
	ledger.OnWrite(statsSvc.Invalidate)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:  ledger,
		Stats:   statsSvc,
		Metrics: m,
		Logger:  logger.WithComponent(applog.ComponentHTTP),
		RateLimit: ratelimit.Config{
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
		},
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
