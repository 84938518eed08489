// Package metrics exposes the service's Prometheus instrumentation. All
// methods are nil-safe so callers can pass a nil *Metrics in tests and
// environments without a scrape target.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the task platform.
type Metrics struct {
	registry *prometheus.Registry

	tasksStarted   prometheus.Counter
	tasksCompleted *prometheus.CounterVec
	tasksRunning   prometheus.Gauge

	eventsPublished *prometheus.CounterVec

	wsConnections prometheus.Gauge
	wsEvictions   prometheus.Counter

	generationCost prometheus.Counter
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		tasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_tasks_started_total",
			Help: "Number of agent tasks started.",
		}),
		tasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_tasks_completed_total",
			Help: "Number of agent tasks finished, by terminal status.",
		}, []string{"status"}),
		tasksRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_tasks_running",
			Help: "Number of agent tasks currently executing.",
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Number of events published to observers, by kind.",
		}, []string{"kind"}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of connected websocket observers.",
		}),
		wsEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_evictions_total",
			Help: "Number of observers evicted for inactivity or backpressure.",
		}),
		generationCost: factory.NewCounter(prometheus.CounterOpts{
			Name: "generation_cost_usd_total",
			Help: "Cumulative generation spend in USD.",
		}),
	}
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TaskStarted records a task entering execution.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksStarted.Inc()
	m.tasksRunning.Inc()
}

// TaskFinished records a task reaching a terminal status.
func (m *Metrics) TaskFinished(status string) {
	if m == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(status).Inc()
	m.tasksRunning.Dec()
}

// EventPublished records one event fan-out by kind.
func (m *Metrics) EventPublished(kind string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(kind).Inc()
}

// ObserverConnected records a new websocket observer.
func (m *Metrics) ObserverConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

// ObserverDisconnected records an observer going away.
func (m *Metrics) ObserverDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

// ObserverEvicted records a forced disconnect.
func (m *Metrics) ObserverEvicted() {
	if m == nil {
		return
	}
	m.wsEvictions.Inc()
}

// GenerationCost adds to the cumulative spend counter.
func (m *Metrics) GenerationCost(usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.generationCost.Add(usd)
}
