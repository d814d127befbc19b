// Package adapters wraps outbound ports with cross-cutting behaviour.
package adapters

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"fintrack/internal/metrics"
	"fintrack/internal/ports"
)

const (
	mirrorMaxFailures = 3
	mirrorOpenTimeout = 30 * time.Second
)

// GuardedMirror puts a circuit breaker in front of a TransactionMirror so a
// failing spreadsheet API is not called on every event. While the breaker
// is open calls fail fast with gobreaker.ErrOpenState.
type GuardedMirror struct {
	mirror  ports.TransactionMirror
	breaker *gobreaker.CircuitBreaker
}

var _ ports.TransactionMirror = (*GuardedMirror)(nil)

func NewGuardedMirror(mirror ports.TransactionMirror, m *metrics.Collector) *GuardedMirror {
	return &GuardedMirror{
		mirror: mirror,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mirror",
			MaxRequests: 1,
			Timeout:     mirrorOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= mirrorMaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
				m.RecordCircuitState(name, stateGauge(to))
			},
		}),
	}
}

func stateGauge(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

func (g *GuardedMirror) run(fn func() error) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (g *GuardedMirror) UpsertTransaction(ctx context.Context, row ports.MirrorRow) error {
	return g.run(func() error { return g.mirror.UpsertTransaction(ctx, row) })
}

func (g *GuardedMirror) RemoveTransaction(ctx context.Context, id uuid.UUID) error {
	return g.run(func() error { return g.mirror.RemoveTransaction(ctx, id) })
}

func (g *GuardedMirror) ReplaceAll(ctx context.Context, rows []ports.MirrorRow) error {
	return g.run(func() error { return g.mirror.ReplaceAll(ctx, rows) })
}

// State reports the breaker state.
func (g *GuardedMirror) State() gobreaker.State {
	return g.breaker.State()
}
