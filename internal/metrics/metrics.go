// Package metrics exposes Prometheus collectors for research sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "research"

// Metrics exposes Prometheus collectors that report session activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsCreated    prometheus.Counter
	sessionsActive     prometheus.Gauge
	sessionsFinished   *prometheus.CounterVec
	sessionsEvicted    prometheus.Counter
	agentRuns          *prometheus.CounterVec
	agentDuration      *prometheus.HistogramVec
	subscribersActive  prometheus.Gauge
	subscribersDropped prometheus.Counter
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors panic, like the promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of research sessions created.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of research flows currently running.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Research sessions that reached a terminal status.",
		}, []string{"status"}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed from the registry.",
		}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent executions by final status.",
		}, []string{"agent", "status"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_seconds",
			Help:      "Time spent in each agent.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"agent"}),
		subscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Live event stream subscriptions.",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected for falling behind.",
		}),
	}
	reg.MustRegister(
		m.sessionsCreated,
		m.sessionsActive,
		m.sessionsFinished,
		m.sessionsEvicted,
		m.agentRuns,
		m.agentDuration,
		m.subscribersActive,
		m.subscribersDropped,
	)
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) FlowStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// FlowFinished records the terminal status of a flow.
func (m *Metrics) FlowFinished(status string) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.sessionsEvicted.Inc()
}

// ObserveAgent records one agent execution.
func (m *Metrics) ObserveAgent(agent, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(agent, status).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribersActive.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribersActive.Dec()
}

func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.subscribersDropped.Inc()
}
