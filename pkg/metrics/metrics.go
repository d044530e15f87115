package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Assignment metrics
	AssignAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildhive_assign_attempts_total",
			Help: "Total number of builder assignment requests sent to the control plane",
		},
	)

	AssignRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildhive_assign_retries_total",
			Help: "Total number of assignment attempts retried after a retriable response",
		},
	)

	// Provisioning metrics
	ProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buildhive_provision_duration_seconds",
			Help:    "Time taken to materialize one worker's credential bundle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Health probe metrics
	HealthProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhive_health_probes_total",
			Help: "Total number of endpoint health probes by outcome",
		},
		[]string{"outcome"},
	)

	// Registration metrics
	WorkersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildhive_workers_registered_total",
			Help: "Total number of workers registered into a builder cluster",
		},
	)

	// Teardown metrics
	TeardownsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhive_teardowns_total",
			Help: "Total number of teardown actions by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		AssignAttemptsTotal,
		AssignRetriesTotal,
		ProvisionDuration,
		HealthProbesTotal,
		WorkersRegisteredTotal,
		TeardownsTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration and records it into a histogram
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the given histogram
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}
