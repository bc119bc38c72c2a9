// Package monitoring exposes the timer engine's operational metrics through
// prometheus collectors.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and gauges for the timer engine
type Metrics struct {
	TimersActive     prometheus.Gauge
	ExpirationsFired prometheus.Counter
	StaleCallbacks   prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	Commands         *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	ReconciledOrders *prometheus.CounterVec
}

// NewMetrics registers the engine's collectors with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a private
// prometheus.NewRegistry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TimersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "expediter_timers_active",
			Help: "Number of countdowns currently armed in the scheduler",
		}),
		ExpirationsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "expediter_timer_expirations_total",
			Help: "Timer expirations delivered to the orchestrator",
		}),
		StaleCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "expediter_timer_stale_callbacks_total",
			Help: "Expiration callbacks suppressed by the generation guard",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expediter_events_published_total",
			Help: "Lifecycle events handed to the broadcaster",
		}, []string{"type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "expediter_events_dropped_total",
			Help: "Events dropped because a subscriber's buffer was full",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expediter_commands_total",
			Help: "Orchestrator commands by name and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expediter_command_duration_seconds",
			Help:    "Orchestrator command latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		ReconciledOrders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expediter_reconciled_orders_total",
			Help: "Orders handled by the boot reconciliation pass",
		}, []string{"result"}),
	}
}
