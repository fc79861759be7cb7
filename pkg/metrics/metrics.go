// Package metrics exposes Prometheus collectors for the qi runtime: call
// rates and latency, signal emissions, event-loop queue depth and
// transport traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics collectors
type Metrics struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callErrors    *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	loopQueue     *prometheus.GaugeVec
	messagesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// Config holds configuration for metrics
type Config struct {
	Namespace string
	// DurationBuckets are the histogram buckets for call latency, in
	// seconds.
	DurationBuckets []float64
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Namespace:       "qi",
		DurationBuckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// New creates and registers all runtime collectors on a private registry.
func New(config Config) *Metrics {
	if config.Namespace == "" {
		config = DefaultConfig()
	}
	if len(config.DurationBuckets) == 0 {
		config.DurationBuckets = DefaultConfig().DurationBuckets
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "meta_calls_total",
			Help:      "Total number of metaCall invocations",
		},
		[]string{"service", "method", "call_type"},
	)
	m.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "meta_call_duration_seconds",
			Help:      "metaCall latency in seconds",
			Buckets:   config.DurationBuckets,
		},
		[]string{"service", "method"},
	)
	m.callErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "meta_call_errors_total",
			Help:      "Total number of metaCall invocations that failed",
		},
		[]string{"service", "method"},
	)
	m.signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "signal_emissions_total",
			Help:      "Total number of signal triggers",
		},
		[]string{"service", "signal"},
	)
	m.subscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "signal_subscribers",
			Help:      "Current number of signal subscribers",
		},
		[]string{"service", "signal"},
	)
	m.loopQueue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "event_loop_pending_tasks",
			Help:      "Tasks waiting in an event loop queue",
		},
		[]string{"loop"},
	)
	m.messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "transport_messages_total",
			Help:      "Transport messages by direction and kind",
		},
		[]string{"direction", "kind"},
	)

	registry.MustRegister(
		m.callsTotal,
		m.callDuration,
		m.callErrors,
		m.signalsTotal,
		m.subscriptions,
		m.loopQueue,
		m.messagesTotal,
	)
	return m
}

// RecordCall counts one metaCall and its latency.
func (m *Metrics) RecordCall(service, method, callType string, seconds float64) {
	m.callsTotal.WithLabelValues(service, method, callType).Inc()
	m.callDuration.WithLabelValues(service, method).Observe(seconds)
}

// RecordCallError counts one failed metaCall.
func (m *Metrics) RecordCallError(service, method string) {
	m.callErrors.WithLabelValues(service, method).Inc()
}

// RecordSignal counts one signal trigger.
func (m *Metrics) RecordSignal(service, signal string) {
	m.signalsTotal.WithLabelValues(service, signal).Inc()
}

// SetSubscribers tracks the subscriber count of a signal.
func (m *Metrics) SetSubscribers(service, signal string, n int) {
	m.subscriptions.WithLabelValues(service, signal).Set(float64(n))
}

// SetLoopQueueDepth tracks pending tasks of a loop.
func (m *Metrics) SetLoopQueueDepth(loop string, n int) {
	m.loopQueue.WithLabelValues(loop).Set(float64(n))
}

// RecordMessage counts one transport message.
func (m *Metrics) RecordMessage(direction, kind string) {
	m.messagesTotal.WithLabelValues(direction, kind).Inc()
}

// Registry exposes the private registry for testing.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
