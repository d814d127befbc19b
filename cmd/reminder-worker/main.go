package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentReminder)
	logger.Info("Starting reminder-worker",
		"interval", cfg.ReminderCheckInterval, "timezone", cfg.ReminderTimezone)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP not configured - set AMQP_URL to deliver reminders")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.ReminderTimezone)
		os.Exit(1)
	}

	m := metrics.New(cfg.MetricsNamespace)
	store, closeStore := cli.MustOpenStore(context.Background(), logger, cfg)

	amqpClient, err := cli.ConnectAMQP(logger, cfg, m)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	processor := services.NewReminderProcessor(store, amqpClient, loc, m)
	reminderWorker := worker.NewReminderWorker(processor, cfg.ReminderCheckInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	if err := reminderWorker.Run(ctx); err != nil {
		logger.Error("Reminder worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder worker stopped gracefully")
}
