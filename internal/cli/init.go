// Package cli provides common initialization shared by the fintrack
// server, the workers and fintrackctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/ports"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default. An unknown level falls back to info with a warning.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, levelErr := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("Invalid log level, using info", "error", levelErr)
	}
	return logger
}

// LoadConfig loads the .env file and the environment, sets up logging and
// validates the result. The process exits on validation failure.
func LoadConfig(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore creates the configured store. The returned cleanup closes it.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (ports.Store, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.Open(ctx, logger.Logger, bcfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Store, res.Cleanup, nil
}

// MustOpenStore is OpenStore that exits the process on failure.
func MustOpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (ports.Store, backend.CleanupFunc) {
	store, cleanup, err := OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return store, cleanup
}

// ConnectAMQP returns a client for the configured broker, or nil when AMQP
// is disabled.
func ConnectAMQP(logger *applog.Logger, cfg *config.Config, m *metrics.Collector) (*amqp.Client, error) {
	logger = logger.WithComponent(applog.ComponentAMQP)
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - ledger events will not be published")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
		Ledger:   cfg.AMQPQueue,
		Reminder: cfg.AMQPReminderQueue,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("AMQP client initialized",
		"exchange", cfg.AMQPExchange,
		"ledger_queue", cfg.AMQPQueue,
		"reminder_queue", cfg.AMQPReminderQueue)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
