package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	err   error
	calls int
	keys  []string
	last  amqp091.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	f.calls++
	f.keys = append(f.keys, key)
	f.last = msg
	return f.err
}

func newTestClient(pub *fakePublisher) *Client {
	return &Client{
		exchangeName: "fintrack",
		pub:          pub,
		breaker:      newBreaker("test", nil),
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed", amqp091.ErrClosed, true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestPublishLedgerEvent(t *testing.T) {
	pub := &fakePublisher{}
	c := newTestClient(pub)
	id := uuid.New()

	require.NoError(t, c.PublishLedgerEvent(context.Background(), KindCreated, "transaction", id))
	require.Equal(t, []string{LedgerQueue}, pub.keys)
	assert.Equal(t, amqp091.Persistent, pub.last.DeliveryMode)

	msg, err := LedgerEventFromJSON(pub.last.Body)
	require.NoError(t, err)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "transaction", msg.Entity)
	assert.Equal(t, KindCreated, msg.Kind)
}

func TestPublishReminderUsesReminderQueue(t *testing.T) {
	pub := &fakePublisher{}
	c := newTestClient(pub)
	fireAt := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)

	require.NoError(t, c.PublishReminder(context.Background(), NewReminderMessage("Reminder", "Log today's spending", fireAt)))
	assert.Equal(t, []string{ReminderQueue}, pub.keys)

	msg, err := ReminderMessageFromJSON(pub.last.Body)
	require.NoError(t, err)
	assert.True(t, msg.FireAt.Equal(fireAt))
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nack from broker")}
	c := newTestClient(pub)
	ctx := context.Background()

	for i := 0; i < maxFailures; i++ {
		err := c.PublishLedgerEvent(ctx, KindDeleted, "tag", uuid.New())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	err := c.PublishLedgerEvent(ctx, KindDeleted, "tag", uuid.New())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, maxFailures, pub.calls, "open breaker does not reach the broker")
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	c := newTestClient(pub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishLedgerEvent(ctx, KindCreated, "account", uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pub.calls)
}

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	body, err := NewLedgerEvent(KindUpdated, "transaction", uuid.New()).ToJSON()
	require.NoError(t, err)

	decode := func(fail error) func(context.Context, []byte) error {
		return func(_ context.Context, b []byte) error {
			if _, err := LedgerEventFromJSON(b); err != nil {
				return errMalformed{err}
			}
			return fail
		}
	}

	t.Run("ack on success", func(t *testing.T) {
		ack := &fakeAck{}
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: body}, decode(nil))
		assert.True(t, ack.acked)
	})

	t.Run("drop malformed", func(t *testing.T) {
		ack := &fakeAck{}
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{")}, decode(nil))
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("requeue on handler error", func(t *testing.T) {
		ack := &fakeAck{}
		handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: body}, decode(errors.New("sheets down")))
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)
	})
}

func TestLedgerEventFromJSONInvalid(t *testing.T) {
	_, err := LedgerEventFromJSON([]byte(`{"id": 12}`))
	assert.Error(t, err)
}

func TestConfiguredQueueNames(t *testing.T) {
	pub := &fakePublisher{}
	c := newTestClient(pub)
	c.queues = Queues{Ledger: "events.custom", Reminder: "nudges"}

	require.NoError(t, c.PublishLedgerEvent(context.Background(), KindDeleted, "tag", uuid.New()))
	require.NoError(t, c.PublishReminder(context.Background(), NewReminderMessage("t", "b", time.Now())))
	assert.Equal(t, []string{"events.custom", "nudges"}, pub.keys)
	assert.Equal(t, []string{LedgerQueue, ReminderQueue}, Queues{}.names())
}
