package worker

import (
	"context"
	"log/slog"
	"time"
)

// ReminderChecker fires the daily reminder when it is due.
type ReminderChecker interface {
	Check(ctx context.Context, now time.Time) (bool, error)
}

// ReminderWorker polls a ReminderChecker on a fixed interval.
type ReminderWorker struct {
	checker  ReminderChecker
	interval time.Duration
	now      func() time.Time
}

func NewReminderWorker(checker ReminderChecker, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{checker: checker, interval: interval, now: time.Now}
}

// Run checks once immediately, then on every tick until ctx is done.
func (w *ReminderWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Reminder worker started", "interval", w.interval)
	w.tick(ctx, w.now())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Reminder worker stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx, w.now())
		}
	}
}

func (w *ReminderWorker) tick(ctx context.Context, now time.Time) {
	fired, err := w.checker.Check(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Reminder check failed", "error", err)
		return
	}
	if fired {
		slog.InfoContext(ctx, "Daily reminder fired", "at", now.Format(time.RFC3339))
	}
}
