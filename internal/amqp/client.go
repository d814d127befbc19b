package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"fintrack/internal/metrics"
)

const (
	LedgerQueue   = "ledger_events"
	ReminderQueue = "reminders"

	publishTimeout  = 5 * time.Second
	maxBackoff      = 30 * time.Second
	maxFailures     = 5
	openTimeout     = 30 * time.Second
	halfOpenProbes  = 1
	failureInterval = time.Minute
)

// ErrCircuitOpen is returned while the publish breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Queues names the queues bound to the exchange. Empty names fall back to
// LedgerQueue and ReminderQueue.
type Queues struct {
	Ledger   string
	Reminder string
}

func (q Queues) ledger() string {
	if q.Ledger == "" {
		return LedgerQueue
	}
	return q.Ledger
}

func (q Queues) reminder() string {
	if q.Reminder == "" {
		return ReminderQueue
	}
	return q.Reminder
}

func (q Queues) names() []string {
	return []string{q.ledger(), q.reminder()}
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Client struct {
	url          string
	exchangeName string
	queues       Queues
	metrics      *metrics.Collector

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	pub     publisher

	breaker *gobreaker.CircuitBreaker
}

// NewClient connects, declares a durable direct exchange and binds each
// queue to it with its own name as routing key.
func NewClient(url, exchangeName string, queues Queues, m *metrics.Collector) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
		metrics:      m,
	}
	c.breaker = newBreaker("amqp_publish", m)

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newBreaker(name string, m *metrics.Collector) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpenProbes,
		Interval:    failureInterval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
			switch to {
			case gobreaker.StateClosed:
				m.RecordCircuitState(name, metrics.CircuitClosed)
			case gobreaker.StateHalfOpen:
				m.RecordCircuitState(name, metrics.CircuitHalfOpen)
			case gobreaker.StateOpen:
				m.RecordCircuitState(name, metrics.CircuitOpen)
			}
		},
	})
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queues.names()); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel, c.pub = conn, channel, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchangeName string, queues []string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// routing key equals queue name on a direct exchange
		if err := ch.QueueBind(q, q, exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

func (c *Client) reconnect() error {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel, c.pub = nil, nil, nil
	c.mu.Unlock()
	return c.connect()
}

func (c *Client) currentPublisher() publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pub
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// publish sends body through the breaker. A connection error triggers one
// reconnect so the next call can succeed.
func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		pub := c.currentPublisher()
		if pub == nil {
			return nil, amqp091.ErrClosed
		}
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, pub.PublishWithContext(
			pctx,
			c.exchangeName, // exchange
			routingKey,     // routing key
			false,          // mandatory
			false,          // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	})

	switch {
	case err == nil:
		c.metrics.RecordPublish(routingKey, "ok")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.RecordPublish(routingKey, "rejected")
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	c.metrics.RecordPublish(routingKey, "error")
	if isConnectionError(err) && c.url != "" {
		if rerr := c.reconnect(); rerr != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", rerr)
		}
	}
	return fmt.Errorf("publish message: %w", err)
}

// PublishLedgerEvent implements ports.EventPublisher.
func (c *Client) PublishLedgerEvent(ctx context.Context, kind, entity string, id uuid.UUID) error {
	body, err := NewLedgerEvent(kind, entity, id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queues.ledger(), body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger event",
		"kind", kind,
		"entity", entity,
		"id", id,
		"exchange", c.exchangeName)
	return nil
}

func (c *Client) PublishReminder(ctx context.Context, msg *ReminderMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queues.reminder(), body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published reminder", "fire_at", msg.FireAt)
	return nil
}

// ConsumeLedgerEvents blocks until ctx is done, reconnecting with
// exponential backoff whenever the delivery channel closes.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	return c.consume(ctx, c.queues.ledger(), func(ctx context.Context, body []byte) error {
		msg, err := LedgerEventFromJSON(body)
		if err != nil {
			return errMalformed{err}
		}
		return handler(ctx, msg)
	})
}

type errMalformed struct{ err error }

func (e errMalformed) Error() string { return "malformed message: " + e.err.Error() }
func (e errMalformed) Unwrap() error { return e.err }

func (c *Client) consume(ctx context.Context, queue string, handler func(context.Context, []byte) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer interrupted, reconnecting",
			"queue", queue,
			"error", err,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.reconnect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handler func(context.Context, []byte) error) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return amqp091.ErrClosed
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks on success, drops malformed bodies and requeues on
// handler failure.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, []byte) error) {
	err := handler(ctx, d.Body)
	var malformed errMalformed
	switch {
	case err == nil:
		d.Ack(false)
	case errors.As(err, &malformed):
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		d.Nack(false, false)
	default:
		slog.ErrorContext(ctx, "Failed to handle message", "error", err)
		d.Nack(false, true)
	}
}

// BreakerState reports the publish breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
