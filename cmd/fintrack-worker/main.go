package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/adapters"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	if !cfg.MirrorEnabled() {
		logger.Error("Google Sheets mirror not configured - set GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP not configured - set AMQP_URL")
		os.Exit(1)
	}

	m := metrics.New(cfg.MetricsNamespace)
	store, closeStore := cli.MustOpenStore(context.Background(), logger, cfg)

	sheetsClient, err := gsheet.New(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := cli.ConnectAMQP(logger, cfg, m)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	mirror := adapters.NewGuardedMirror(sheetsClient, m)
	processor := services.NewSyncProcessor(store, mirror, m)
	syncWorker := worker.NewSyncWorker(amqpClient, processor, cfg.MirrorResyncInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
	})

	if err := syncWorker.Run(ctx); err != nil {
		logger.Error("Sync worker stopped", "error", err)
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := closeStore(); err != nil {
		logger.Warn("Store close error", "error", err)
	}
	logger.Info("Worker stopped gracefully")
}
