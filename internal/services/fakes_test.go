package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/ports"
)

type publishedEvent struct {
	kind, entity string
	id           uuid.UUID
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, kind, entity string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind, entity, id})
	return f.err
}

func (f *fakePublisher) last() publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return publishedEvent{}
	}
	return f.events[len(f.events)-1]
}

type fakeReminderPublisher struct {
	sent []*amqp.ReminderMessage
	err  error
}

func (f *fakeReminderPublisher) PublishReminder(_ context.Context, msg *amqp.ReminderMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeMirror struct {
	rows     map[uuid.UUID]ports.MirrorRow
	replaced int
	fail     bool
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: map[uuid.UUID]ports.MirrorRow{}}
}

var errMirrorDown = errors.New("mirror unavailable")

func (f *fakeMirror) UpsertTransaction(_ context.Context, row ports.MirrorRow) error {
	if f.fail {
		return errMirrorDown
	}
	f.rows[row.Transaction.ID] = row
	return nil
}

func (f *fakeMirror) RemoveTransaction(_ context.Context, id uuid.UUID) error {
	if f.fail {
		return errMirrorDown
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeMirror) ReplaceAll(_ context.Context, rows []ports.MirrorRow) error {
	if f.fail {
		return errMirrorDown
	}
	f.rows = map[uuid.UUID]ports.MirrorRow{}
	for _, r := range rows {
		f.rows[r.Transaction.ID] = r
	}
	f.replaced++
	return nil
}
