// Package observability holds the Prometheus instrumentation for the load
// pipeline and the report server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the pipeline.
type Metrics struct {
	RowsRead     prometheus.Counter
	RowsRejected prometheus.Counter

	BatchesLoaded prometheus.Counter
	BatchesFailed prometheus.Counter
	FKRecoveries  prometheus.Counter

	ProfileUpdates prometheus.Counter
	RunDuration    prometheus.Histogram

	// Report server metrics.
	ReportRequests *prometheus.CounterVec // labels: report, outcome={ok,error}
}

// NewMetrics creates all pipeline metrics and registers them with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting registers against a fresh registry so parallel tests
// never hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "rows_read_total",
			Help:      "Total data rows read from feed files.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "rows_rejected_total",
			Help:      "Total rows dropped by normalization or at the store boundary.",
		}),
		BatchesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "batches_loaded_total",
			Help:      "Total batches committed to the store.",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "batches_failed_total",
			Help:      "Total batches abandoned after an integrity error.",
		}),
		FKRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "fk_recoveries_total",
			Help:      "Total foreign-key violations recovered via profile projection insert.",
		}),
		ProfileUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "profile_updates_total",
			Help:      "Total facility profile rows corrected by reconciliation.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hospital_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		ReportRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital_etl",
			Name:      "report_requests_total",
			Help:      "Report API requests by report name and outcome.",
		}, []string{"report", "outcome"}),
	}

	reg.MustRegister(
		m.RowsRead,
		m.RowsRejected,
		m.BatchesLoaded,
		m.BatchesFailed,
		m.FKRecoveries,
		m.ProfileUpdates,
		m.RunDuration,
		m.ReportRequests,
	)

	return m
}
