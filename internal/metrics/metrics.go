package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for sail-sentinel.
type Metrics struct {
	registry                *prometheus.Registry
	pollDurationSeconds     prometheus.Histogram
	servicesTotal           *prometheus.GaugeVec
	stackStatus             *prometheus.GaugeVec
	pollErrorsTotal         *prometheus.CounterVec
	transitionsTotal        *prometheus.CounterVec
	tasksTotal              *prometheus.CounterVec
	lastSuccessfulPollGauge prometheus.Gauge
}

var (
	runStates     = []string{"running", "paused", "exited"}
	stackStatuses = []string{"working", "warning", "stopped"}
)

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		pollDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sail_sentinel_poll_duration_seconds",
			Help:    "Duration of status polls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		servicesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sail_sentinel_services",
			Help: "Services in the last snapshot by run state.",
		}, []string{"run_state"}),
		stackStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sail_sentinel_stack_status",
			Help: "Aggregate stack status; the active status is 1, others 0.",
		}, []string{"status"}),
		pollErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sail_sentinel_poll_errors_total",
			Help: "Total failed status polls by reason.",
		}, []string{"reason"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sail_sentinel_transitions_total",
			Help: "Total service run state transitions by new state.",
		}, []string{"state"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sail_sentinel_tasks_total",
			Help: "Total tasks run by outcome.",
		}, []string{"outcome"}),
		lastSuccessfulPollGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sail_sentinel_last_successful_poll_timestamp",
			Help: "Unix timestamp of the last successful poll.",
		}),
	}

	registry.MustRegister(
		m.pollDurationSeconds,
		m.servicesTotal,
		m.stackStatus,
		m.pollErrorsTotal,
		m.transitionsTotal,
		m.tasksTotal,
		m.lastSuccessfulPollGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePollDuration records the duration of a completed poll.
func (m *Metrics) ObservePollDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.pollDurationSeconds.Observe(duration.Seconds())
}

// SetServices replaces the per-run-state service gauges. States missing
// from counts are reset to zero.
func (m *Metrics) SetServices(counts map[string]int) {
	if m == nil {
		return
	}
	for _, state := range runStates {
		m.servicesTotal.WithLabelValues(state).Set(float64(counts[state]))
	}
}

// SetStackStatus marks status as the active aggregate status.
func (m *Metrics) SetStackStatus(status string) {
	if m == nil {
		return
	}
	for _, candidate := range stackStatuses {
		value := 0.0
		if candidate == status {
			value = 1
		}
		m.stackStatus.WithLabelValues(candidate).Set(value)
	}
}

// IncPollErrors increments the poll error counter for reason.
func (m *Metrics) IncPollErrors(reason string) {
	if m == nil {
		return
	}
	m.pollErrorsTotal.WithLabelValues(reason).Inc()
}

// IncTransitions increments the transition counter for the new state.
func (m *Metrics) IncTransitions(state string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(state).Inc()
}

// IncTasks increments the task counter for outcome ("succeeded" or "failed").
func (m *Metrics) IncTasks(outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(outcome).Inc()
}

// SetLastSuccessfulPollTimestamp sets the last successful poll time.
func (m *Metrics) SetLastSuccessfulPollTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulPollGauge.Set(float64(t.Unix()))
}
