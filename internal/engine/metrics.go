package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	phaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socburn_phase_transitions_total",
			Help: "Total number of phase transitions, by phase name.",
		},
		[]string{"phase"},
	)

	workerBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "socburn_worker_batches_total",
			Help: "Total number of completed computation batches across all workers.",
		},
	)

	workersPinned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socburn_workers_pinned",
			Help: "Number of workers currently bound to an execution unit.",
		},
	)

	clockApplyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "socburn_clock_apply_failures_total",
			Help: "Total number of failed clock profile applications.",
		},
	)
)

func init() {
	prometheus.MustRegister(phaseTransitionsTotal)
	prometheus.MustRegister(workerBatchesTotal)
	prometheus.MustRegister(workersPinned)
	prometheus.MustRegister(clockApplyFailuresTotal)
}
