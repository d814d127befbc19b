package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
)

type fakeSource struct {
	events []*amqp.LedgerEvent
	err    error
}

func (f *fakeSource) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, ev := range f.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeHandler struct {
	mu        sync.Mutex
	handled   []*amqp.LedgerEvent
	resyncs   int
	resyncErr error
}

func (f *fakeHandler) HandleEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, ev)
	return nil
}

func (f *fakeHandler) Resync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++
	return f.resyncErr
}

func (f *fakeHandler) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handled), f.resyncs
}

func TestSyncWorkerHandlesEvents(t *testing.T) {
	events := []*amqp.LedgerEvent{
		amqp.NewLedgerEvent(amqp.KindCreated, "transaction", uuid.New()),
		amqp.NewLedgerEvent(amqp.KindDeleted, "transaction", uuid.New()),
	}
	h := &fakeHandler{resyncErr: errors.New("sheet offline")}
	w := NewSyncWorker(&fakeSource{events: events}, h, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, _ := h.counts()
		return n == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	_, resyncs := h.counts()
	assert.Equal(t, 1, resyncs, "startup resync runs even though it fails")
}

func TestSyncWorkerPeriodicResync(t *testing.T) {
	h := &fakeHandler{}
	w := NewSyncWorker(&fakeSource{}, h, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, r := h.counts()
		return r >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSyncWorkerConsumeError(t *testing.T) {
	boom := errors.New("broker gone")
	w := NewSyncWorker(&fakeSource{err: boom}, &fakeHandler{}, time.Hour)
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

type fakeChecker struct {
	mu    sync.Mutex
	calls []time.Time
	fire  bool
	err   error
}

func (f *fakeChecker) Check(_ context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.fire, f.err
}

func (f *fakeChecker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestReminderWorkerTicks(t *testing.T) {
	c := &fakeChecker{fire: true}
	w := NewReminderWorker(c, 10*time.Millisecond)
	fixed := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return c.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, c.calls[0].Equal(fixed))
}

func TestReminderWorkerSurvivesErrors(t *testing.T) {
	c := &fakeChecker{err: errors.New("store locked")}
	w := NewReminderWorker(c, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return c.count() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestNewReminderWorkerDefaultsInterval(t *testing.T) {
	w := NewReminderWorker(&fakeChecker{}, 0)
	assert.Equal(t, time.Minute, w.interval)
}
