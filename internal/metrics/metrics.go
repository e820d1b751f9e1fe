// Package metrics declares the engine's Prometheus instrumentation,
// grounded on the teacher's MetricsRegistry
// (internal/interfaces/http/metrics.go). Unlike the teacher, this registry
// is never exposed over HTTP — the HTTP/REST surface is explicitly out of
// scope (spec §1) — internal/engine exercises it in-process and
// cmd/rewardengine can print a snapshot for operators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the engine emits.
type Registry struct {
	EventsProcessed   *prometheus.CounterVec
	GateTrips         *prometheus.CounterVec
	DailyCapHits      prometheus.Counter
	OverflowFaults    prometheus.Counter
	SubmitLatency     *prometheus.HistogramVec
	ActiveUsers       prometheus.Gauge
}

// NewRegistry builds a fresh Registry and registers it with reg (pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test packages).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardengine_events_processed_total",
				Help: "Total ActivityEvents processed by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		GateTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardengine_gate_trips_total",
				Help: "Total anti-bot gate trips by risk class.",
			},
			[]string{"risk"},
		),
		DailyCapHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rewardengine_daily_cap_hits_total",
				Help: "Total events where the daily mining cap was hit.",
			},
		),
		OverflowFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rewardengine_overflow_faults_total",
				Help: "Total numeric kernel overflow faults.",
			},
		),
		SubmitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewardengine_submit_activity_duration_seconds",
				Help:    "Duration of submitActivity calls.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"result"},
		),
		ActiveUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rewardengine_active_users",
				Help: "Distinct users processed since startup.",
			},
		),
	}

	reg.MustRegister(r.EventsProcessed, r.GateTrips, r.DailyCapHits, r.OverflowFaults, r.SubmitLatency, r.ActiveUsers)
	return r
}
