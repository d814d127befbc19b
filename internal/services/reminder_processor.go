package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/metrics"
	"fintrack/internal/ports"
	"fintrack/internal/reminder"
	"fintrack/internal/settings"
)

const (
	ReminderTitle = "Fintrack"
	ReminderBody  = "Don't forget to log today's spending."
)

// ReminderPublisher delivers reminder notifications.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// ReminderProcessor fires the daily reminder when it is due and records
// when it last fired.
type ReminderProcessor struct {
	store     ports.SettingsStore
	publisher ReminderPublisher
	metrics   *metrics.Collector
	loc       *time.Location
}

func NewReminderProcessor(store ports.SettingsStore, publisher ReminderPublisher, loc *time.Location, m *metrics.Collector) *ReminderProcessor {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderProcessor{store: store, publisher: publisher, metrics: m, loc: loc}
}

// Check fires the reminder if enabled and due at now. It reports whether a
// reminder was sent.
func (p *ReminderProcessor) Check(ctx context.Context, now time.Time) (bool, error) {
	if p.store == nil || p.publisher == nil {
		return false, fmt.Errorf("processor not properly initialized")
	}
	prefs, err := settings.Load(ctx, p.store)
	if err != nil {
		return false, err
	}
	if !prefs.ReminderEnabled {
		return false, nil
	}

	schedule := reminder.FromPreferences(prefs, p.loc)
	if !schedule.IsDue(prefs.ReminderLastFired, now) {
		slog.DebugContext(ctx, "Reminder not due", "next", schedule.Next(now))
		return false, nil
	}

	msg := amqp.NewReminderMessage(ReminderTitle, ReminderBody, now)
	if err := p.publisher.PublishReminder(ctx, msg); err != nil {
		return false, fmt.Errorf("publish reminder: %w", err)
	}
	p.metrics.RecordReminder()

	// The reminder is out; a failure here only risks a duplicate.
	if err := settings.Set(ctx, p.store, settings.KeyReminderLastFired, now.UTC().Format(time.RFC3339)); err != nil {
		slog.ErrorContext(ctx, "Failed to record reminder fire time", "error", err)
	}

	slog.InfoContext(ctx, "Reminder sent", "next", schedule.Next(now))
	return true, nil
}
