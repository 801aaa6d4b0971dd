package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for the harness.
type Metrics struct {
	config MetricsConfig

	// Command metrics
	commandsRun     *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	// Cache metrics
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheWriteFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// When disabled it returns a no-op instance whose record methods are safe
// to call.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_run_total",
				Help:      "Total number of engine commands executed",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of engine command executions",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cached results served",
			},
			[]string{"operation"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache lookups that fell through",
			},
			[]string{"operation"},
		),
		cacheWriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_failures_total",
				Help:      "Total number of swallowed cache write errors",
			},
			[]string{"operation"},
		),
	}

	collectors := []prometheus.Collector{
		m.commandsRun,
		m.commandDuration,
		m.cacheHits,
		m.cacheMisses,
		m.cacheWriteFailures,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
// Callers wanting an HTTP endpoint can mount promhttp.HandlerFor on it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand records one engine command execution.
func (m *Metrics) RecordCommand(command, status string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.commandsRun.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordCacheHit records a cache lookup served from the store.
func (m *Metrics) RecordCacheHit(operation string) {
	if m == nil || m.registry == nil {
		return
	}
	m.cacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a cache lookup that fell through to execution.
func (m *Metrics) RecordCacheMiss(operation string) {
	if m == nil || m.registry == nil {
		return
	}
	m.cacheMisses.WithLabelValues(operation).Inc()
}

// RecordCacheWriteFailure records a swallowed cache write error.
func (m *Metrics) RecordCacheWriteFailure(operation string) {
	if m == nil || m.registry == nil {
		return
	}
	m.cacheWriteFailures.WithLabelValues(operation).Inc()
}
