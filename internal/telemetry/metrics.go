package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler's Prometheus collectors. Unlike a
// promauto-registered global, each Metrics owns its own prometheus.Registry
// so multiple pools can coexist in one process (and in tests) without
// colliding on metric names at the default registry.
type Metrics struct {
	registry *prometheus.Registry

	QueueDepth       prometheus.Gauge
	BusySlots        prometheus.Gauge
	JobsDispatched   prometheus.Counter
	RecurringEmitted prometheus.Counter
	MergesApplied    prometheus.Counter
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobrunner_queue_depth",
			Help: "Number of jobs currently waiting in the pending queue.",
		}),
		BusySlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobrunner_busy_slots",
			Help: "Number of worker slots currently occupied.",
		}),
		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobrunner_jobs_dispatched_total",
			Help: "Total jobs handed to a worker slot.",
		}),
		RecurringEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobrunner_recurring_emitted_total",
			Help: "Total recurring job instances enqueued by the registry.",
		}),
		MergesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobrunner_merges_applied_total",
			Help: "Total incoming jobs absorbed into an already-queued job by the merge function.",
		}),
	}

	reg.MustRegister(
		m.QueueDepth,
		m.BusySlots,
		m.JobsDispatched,
		m.RecurringEmitted,
		m.MergesApplied,
	)

	return m
}

// Registry exposes the underlying registry so a caller can serve it over
// HTTP via promhttp, or merge it into a larger process-wide registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
