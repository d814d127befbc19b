// Package worker holds the long running loops behind the worker binaries.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
)

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// EventHandler applies ledger events to a mirror.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	Resync(ctx context.Context) error
}

// SyncWorker consumes ledger events into an EventHandler and periodically
// resyncs in case messages were lost.
type SyncWorker struct {
	source         EventSource
	handler        EventHandler
	resyncInterval time.Duration
}

// NewSyncWorker creates a worker. A zero resyncInterval disables the
// periodic resync; the startup resync always runs.
func NewSyncWorker(source EventSource, handler EventHandler, resyncInterval time.Duration) *SyncWorker {
	return &SyncWorker{source: source, handler: handler, resyncInterval: resyncInterval}
}

// Run blocks until ctx is cancelled or consumption fails.
func (w *SyncWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup resync")
	if err := w.handler.Resync(ctx); err != nil {
		// Keep going; the next event or tick retries.
		slog.ErrorContext(ctx, "Startup resync failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.source.ConsumeLedgerEvents(ctx, w.handle)
	})
	if w.resyncInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.resyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := w.handler.Resync(ctx); err != nil {
						slog.ErrorContext(ctx, "Periodic resync failed", "error", err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *SyncWorker) handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"entity", ev.Entity,
		"id", ev.ID)
	return w.handler.HandleEvent(ctx, ev)
}
