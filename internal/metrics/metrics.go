// Package metrics defines Prometheus metrics for the ingestion pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsvault_ingestions_total",
			Help: "Total ingestion attempts by terminal status",
		},
		[]string{"status"},
	)

	PhaseAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsvault_phase_attempts_total",
			Help: "Store calls per ingestion phase, including retries",
		},
		[]string{"phase", "outcome"},
	)

	PhaseRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsvault_phase_retries_total",
			Help: "Retries issued per phase after transient store failures",
		},
		[]string{"phase"},
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obsvault_ingestion_duration_seconds",
			Help:    "End-to-end duration of one coordinator invocation",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsvault_retrievals_total",
			Help: "Retrieval outcomes: complete, degraded or not_found",
		},
		[]string{"outcome"},
	)
)

// Register registers all Prometheus metrics.
func Register() {
	prometheus.MustRegister(IngestionsTotal)
	prometheus.MustRegister(PhaseAttemptsTotal)
	prometheus.MustRegister(PhaseRetriesTotal)
	prometheus.MustRegister(IngestionDuration)
	prometheus.MustRegister(RetrievalsTotal)
}
