package adsclient

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the interface for collecting operational metrics.
// Implementations can export to various backends; PrometheusMetrics is
// provided, DefaultMetrics is a no-op.
type Metrics interface {
	// Connection metrics
	ConnectionAttempts()
	ConnectionSuccesses()
	ConnectionFailures()
	ConnectionActive(active bool)
	Reconnections()

	// Operation metrics
	OperationCompleted(operation string, duration time.Duration, err error)

	// Data transfer metrics
	BytesSent(bytes int64)
	BytesReceived(bytes int64)

	// Notification metrics
	NotificationReceived()
	NotificationDropped()
	SubscriptionsActive(count int)
}

// noopMetrics implements Metrics with no-op operations for minimal overhead.
type noopMetrics struct{}

func (n *noopMetrics) ConnectionAttempts()                                                    {}
func (n *noopMetrics) ConnectionSuccesses()                                                   {}
func (n *noopMetrics) ConnectionFailures()                                                    {}
func (n *noopMetrics) ConnectionActive(active bool)                                           {}
func (n *noopMetrics) Reconnections()                                                         {}
func (n *noopMetrics) OperationCompleted(operation string, duration time.Duration, err error) {}
func (n *noopMetrics) BytesSent(bytes int64)                                                  {}
func (n *noopMetrics) BytesReceived(bytes int64)                                              {}
func (n *noopMetrics) NotificationReceived()                                                  {}
func (n *noopMetrics) NotificationDropped()                                                   {}
func (n *noopMetrics) SubscriptionsActive(count int)                                          {}

// DefaultMetrics is a no-op metrics collector to minimize overhead when
// metrics are not configured.
var DefaultMetrics Metrics = &noopMetrics{}

// InMemoryMetrics is a simple in-memory collector for testing and debugging.
type InMemoryMetrics struct {
	mu sync.Mutex

	ConnectionAttemptsCount  atomic.Int64
	ConnectionSuccessesCount atomic.Int64
	ConnectionFailuresCount  atomic.Int64
	ConnectionActiveState    atomic.Bool
	ReconnectionsCount       atomic.Int64

	OperationCounts map[string]int64
	OperationErrors map[string]int64

	BytesSentCount     atomic.Int64
	BytesReceivedCount atomic.Int64

	NotificationsReceivedCount atomic.Int64
	NotificationsDroppedCount  atomic.Int64
	SubscriptionsActiveCount   atomic.Int64
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		OperationCounts: make(map[string]int64),
		OperationErrors: make(map[string]int64),
	}
}

func (m *InMemoryMetrics) ConnectionAttempts()          { m.ConnectionAttemptsCount.Add(1) }
func (m *InMemoryMetrics) ConnectionSuccesses()         { m.ConnectionSuccessesCount.Add(1) }
func (m *InMemoryMetrics) ConnectionFailures()          { m.ConnectionFailuresCount.Add(1) }
func (m *InMemoryMetrics) ConnectionActive(active bool) { m.ConnectionActiveState.Store(active) }
func (m *InMemoryMetrics) Reconnections()               { m.ReconnectionsCount.Add(1) }

func (m *InMemoryMetrics) OperationCompleted(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OperationCounts[operation]++
	if err != nil {
		m.OperationErrors[operation]++
	}
}

func (m *InMemoryMetrics) BytesSent(bytes int64)     { m.BytesSentCount.Add(bytes) }
func (m *InMemoryMetrics) BytesReceived(bytes int64) { m.BytesReceivedCount.Add(bytes) }
func (m *InMemoryMetrics) NotificationReceived()     { m.NotificationsReceivedCount.Add(1) }
func (m *InMemoryMetrics) NotificationDropped()      { m.NotificationsDroppedCount.Add(1) }
func (m *InMemoryMetrics) SubscriptionsActive(count int) {
	m.SubscriptionsActiveCount.Store(int64(count))
}

// PrometheusMetrics exports client metrics through a prometheus registerer.
type PrometheusMetrics struct {
	connectionAttempts  prometheus.Counter
	connectionSuccesses prometheus.Counter
	connectionFailures  prometheus.Counter
	connectionActive    prometheus.Gauge
	reconnections       prometheus.Counter

	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	bytesSent     prometheus.Counter
	bytesReceived prometheus.Counter

	notificationsReceived prometheus.Counter
	notificationsDropped  prometheus.Counter
	subscriptionsActive   prometheus.Gauge
}

// NewPrometheusMetrics creates a collector registered with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		connectionAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "connection_attempts_total",
			Help: "Number of connection attempts to the ADS router.",
		}),
		connectionSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "connection_successes_total",
			Help: "Number of successful connections.",
		}),
		connectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "connection_failures_total",
			Help: "Number of failed connection attempts.",
		}),
		connectionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adsclient", Name: "connection_active",
			Help: "Whether the client is currently connected.",
		}),
		reconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "reconnections_total",
			Help: "Number of automatic reconnections.",
		}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adsclient", Name: "operation_duration_seconds",
			Help:    "ADS operation round-trip duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "operation_errors_total",
			Help: "Failed ADS operations.",
		}, []string{"operation"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "bytes_sent_total",
			Help: "Payload bytes written to the router.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "bytes_received_total",
			Help: "Payload bytes received from the router.",
		}),
		notificationsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "notifications_received_total",
			Help: "Device notification samples delivered.",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adsclient", Name: "notifications_dropped_total",
			Help: "Device notification samples dropped.",
		}),
		subscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adsclient", Name: "subscriptions_active",
			Help: "Currently registered notification handles.",
		}),
	}

	reg.MustRegister(
		m.connectionAttempts, m.connectionSuccesses, m.connectionFailures,
		m.connectionActive, m.reconnections,
		m.operationDuration, m.operationErrors,
		m.bytesSent, m.bytesReceived,
		m.notificationsReceived, m.notificationsDropped, m.subscriptionsActive,
	)
	return m
}

func (m *PrometheusMetrics) ConnectionAttempts()  { m.connectionAttempts.Inc() }
func (m *PrometheusMetrics) ConnectionSuccesses() { m.connectionSuccesses.Inc() }
func (m *PrometheusMetrics) ConnectionFailures()  { m.connectionFailures.Inc() }
func (m *PrometheusMetrics) ConnectionActive(active bool) {
	if active {
		m.connectionActive.Set(1)
	} else {
		m.connectionActive.Set(0)
	}
}
func (m *PrometheusMetrics) Reconnections() { m.reconnections.Inc() }

func (m *PrometheusMetrics) OperationCompleted(operation string, duration time.Duration, err error) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(operation).Inc()
	}
}

func (m *PrometheusMetrics) BytesSent(bytes int64)     { m.bytesSent.Add(float64(bytes)) }
func (m *PrometheusMetrics) BytesReceived(bytes int64) { m.bytesReceived.Add(float64(bytes)) }
func (m *PrometheusMetrics) NotificationReceived()     { m.notificationsReceived.Inc() }
func (m *PrometheusMetrics) NotificationDropped()      { m.notificationsDropped.Inc() }
func (m *PrometheusMetrics) SubscriptionsActive(count int) {
	m.subscriptionsActive.Set(float64(count))
}

// WithMetrics sets the metrics collector for the client.
func WithMetrics(metrics Metrics) Option {
	return func(c *clientConfig) error {
		c.metrics = metrics
		return nil
	}
}
