// Package metrics exposes the Prometheus collectors shared by the server and
// the workers. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CircuitState mirrors the breaker states as gauge values.
type CircuitState int

const (
	CircuitClosed   CircuitState = 0
	CircuitOpen     CircuitState = 1
	CircuitHalfOpen CircuitState = 2
)

type Collector struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	ledgerWrites   *prometheus.CounterVec
	eventPublishes *prometheus.CounterVec
	circuitState   *prometheus.GaugeVec
	cacheLookups   *prometheus.CounterVec
	remindersFired prometheus.Counter
	mirrorOps      *prometheus.CounterVec
	securityEvents *prometheus.CounterVec
}

// New creates a collector registered on its own registry.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ledgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_writes_total",
				Help:      "Total number of successful ledger writes by entity and kind",
			},
			[]string{"entity", "kind"},
		),
		eventPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publishes_total",
				Help:      "Total number of AMQP publish attempts by routing key and status",
			},
			[]string{"routing_key", "status"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		remindersFired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_fired_total",
				Help:      "Total number of daily reminders published",
			},
		),
		mirrorOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_operations_total",
				Help:      "Total number of spreadsheet mirror operations by kind and status",
			},
			[]string{"kind", "status"},
		),
		securityEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "security_events_total",
				Help:      "Total number of rejected or suspicious requests by kind",
			},
			[]string{"kind"},
		),
	}
	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.ledgerWrites,
		c.eventPublishes,
		c.circuitState,
		c.cacheLookups,
		c.remindersFired,
		c.mirrorOps,
		c.securityEvents,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordLedgerWrite(entity, kind string) {
	if c == nil {
		return
	}
	c.ledgerWrites.WithLabelValues(entity, kind).Inc()
}

func (c *Collector) RecordPublish(routingKey, status string) {
	if c == nil {
		return
	}
	c.eventPublishes.WithLabelValues(routingKey, status).Inc()
}

func (c *Collector) RecordCircuitState(name string, state CircuitState) {
	if c == nil {
		return
	}
	c.circuitState.WithLabelValues(name).Set(float64(state))
}

func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) RecordReminder() {
	if c == nil {
		return
	}
	c.remindersFired.Inc()
}

func (c *Collector) RecordMirror(kind string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.mirrorOps.WithLabelValues(kind, status).Inc()
}

// RecordSecurityEvent counts a rate limited or suspicious request.
func (c *Collector) RecordSecurityEvent(kind string) {
	if c == nil {
		return
	}
	c.securityEvents.WithLabelValues(kind).Inc()
}
