// Package metrics exports Prometheus metrics for the update queue and the
// WebSocket sessions of the demo server.
//
// A Collector implements queue.Observer:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	q := queue.New(queue.WithObserver(m))
//
// Metrics collected:
//   - querystate_enqueues_total: Counter of queued writes by op (set, remove)
//   - querystate_flushes_total: Counter of flushes by status (success, error, empty)
//   - querystate_flush_batch_size: Histogram of keys per flush
//   - querystate_flush_wait_seconds: Histogram of time from window open to commit
//   - querystate_active_sessions: Gauge of connected WebSocket clients
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "querystate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush wait time.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the flush wait histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "querystate",
		// Flush waits are bounded by the throttle, so start well below
		// prometheus.DefBuckets.
		Buckets:  []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Collector records queue and session metrics.
type Collector struct {
	enqueues       *prometheus.CounterVec
	flushes        *prometheus.CounterVec
	batchSize      prometheus.Histogram
	flushWait      prometheus.Histogram
	activeSessions prometheus.Gauge
}

// New creates a Collector and registers its metrics.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Namespace == "" {
		config.Namespace = "querystate"
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		enqueues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "enqueues_total",
			Help:        "Total number of queued query updates",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of queue flushes",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_batch_size",
			Help:        "Number of keys committed per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		flushWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_wait_seconds",
			Help:        "Time from the first update of a window to its commit",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected WebSocket clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Enqueued implements queue.Observer.
func (c *Collector) Enqueued(key string, removed bool) {
	op := "set"
	if removed {
		op = "remove"
	}
	c.enqueues.WithLabelValues(op).Inc()
}

// Flushed implements queue.Observer.
func (c *Collector) Flushed(keys int, wait time.Duration, err error) {
	switch {
	case err != nil:
		c.flushes.WithLabelValues("error").Inc()
	case keys == 0:
		c.flushes.WithLabelValues("empty").Inc()
	default:
		c.flushes.WithLabelValues("success").Inc()
	}
	if keys > 0 {
		c.batchSize.Observe(float64(keys))
	}
	c.flushWait.Observe(wait.Seconds())
}

// SessionOpened increments the active session gauge.
func (c *Collector) SessionOpened() {
	c.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (c *Collector) SessionClosed() {
	c.activeSessions.Dec()
}
