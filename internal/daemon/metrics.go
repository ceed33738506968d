package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/notify"
)

// Metrics tracks reminder delivery for the running daemon.
type Metrics struct {
	// Counters
	delivered   atomic.Int64
	failed      atomic.Int64
	reloads     atomic.Int64
	errorsTotal atomic.Int64

	// Gauges with mutex for complex types
	mu             sync.RWMutex
	latencyMs      int64
	lastDeliveryAt time.Time
	lastReloadAt   time.Time
	lastError      string
	lastErrorAt    time.Time

	// Error breakdown
	errorsByCategory map[string]int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByCategory: make(map[string]int64),
	}
}

// MetricsSnapshot represents a point-in-time view of metrics.
type MetricsSnapshot struct {
	DeliveredTotal   int64            `json:"delivered_total"`
	FailedTotal      int64            `json:"failed_total"`
	ReloadsTotal     int64            `json:"reloads_total"`
	ErrorsTotal      int64            `json:"errors_total"`
	LatencyMs        int64            `json:"latency_ms"`
	LastDeliveryAt   *time.Time       `json:"last_delivery_at,omitempty"`
	LastReloadAt     *time.Time       `json:"last_reload_at,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
	LastErrorAt      *time.Time       `json:"last_error_at,omitempty"`
	ErrorsByCategory map[string]int64 `json:"errors_by_category,omitempty"`
}

// Snapshot returns a copy of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		DeliveredTotal:   m.delivered.Load(),
		FailedTotal:      m.failed.Load(),
		ReloadsTotal:     m.reloads.Load(),
		ErrorsTotal:      m.errorsTotal.Load(),
		LatencyMs:        m.latencyMs,
		LastError:        m.lastError,
		ErrorsByCategory: make(map[string]int64, len(m.errorsByCategory)),
	}

	if !m.lastDeliveryAt.IsZero() {
		t := m.lastDeliveryAt
		snap.LastDeliveryAt = &t
	}
	if !m.lastReloadAt.IsZero() {
		t := m.lastReloadAt
		snap.LastReloadAt = &t
	}
	if !m.lastErrorAt.IsZero() {
		t := m.lastErrorAt
		snap.LastErrorAt = &t
	}

	for k, v := range m.errorsByCategory {
		snap.ErrorsByCategory[k] = v
	}
	return snap
}

// RecordDelivered records a reminder that reached every channel.
func (m *Metrics) RecordDelivered(latency time.Duration) {
	m.delivered.Add(1)

	m.mu.Lock()
	m.latencyMs = latency.Milliseconds()
	m.lastDeliveryAt = time.Now()
	m.mu.Unlock()
}

// RecordFailed records a reminder at least one channel refused.
func (m *Metrics) RecordFailed(err error) {
	m.failed.Add(1)
	m.RecordError(errors.Classify(err).String(), err)
}

// RecordReload records a reload from storage.
func (m *Metrics) RecordReload() {
	m.reloads.Add(1)

	m.mu.Lock()
	m.lastReloadAt = time.Now()
	m.mu.Unlock()
}

// RecordError records an error with category.
func (m *Metrics) RecordError(category string, err error) {
	m.errorsTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err.Error()
	m.lastErrorAt = time.Now()

	if category != "" {
		m.errorsByCategory[category]++
	}
}

// Delivered returns the total reminders delivered.
func (m *Metrics) Delivered() int64 {
	return m.delivered.Load()
}

// Failed returns the total reminders that failed delivery.
func (m *Metrics) Failed() int64 {
	return m.failed.Load()
}

// Instrument wraps ch so every delivery is counted in m.
func Instrument(ch notify.Channel, m *Metrics) notify.Channel {
	return &instrumented{Channel: ch, metrics: m}
}

type instrumented struct {
	notify.Channel
	metrics *Metrics
}

func (c *instrumented) Deliver(ctx context.Context, msg notify.Message) error {
	start := time.Now()
	err := c.Channel.Deliver(ctx, msg)
	if err != nil {
		c.metrics.RecordFailed(err)
		return err
	}
	c.metrics.RecordDelivered(time.Since(start))
	return nil
}
