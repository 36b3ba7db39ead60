// Package metrics defines Prometheus metrics for listengraph.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listengraph_http_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listengraph_http_requests_total",
			Help: "Total status server requests",
		},
		[]string{"method", "path", "status"},
	)

	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listengraph_rows_total",
			Help: "Rows by write outcome (inserted, updated, failed, resumed)",
		},
		[]string{"outcome"},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listengraph_batches_total",
			Help: "Batches by outcome (ok, partial, failed, resumed)",
		},
		[]string{"outcome"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listengraph_batch_duration_seconds",
			Help:    "Time to transform, resolve and write one batch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	BatchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listengraph_batch_retries_total",
			Help: "Store calls retried after a transient error",
		},
	)

	FieldIssues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listengraph_field_issues_total",
			Help: "Malformed source values dropped during transform",
		},
		[]string{"column"},
	)

	IndexCreations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listengraph_index_creations_total",
			Help: "Index creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	MigrationState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "listengraph_migration_state",
			Help: "Current orchestrator state (0=idle .. 6=done, 7=failed)",
		},
	)

	Entities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "listengraph_entities",
			Help: "Distinct dimension entities resolved in this run",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		RowsTotal, BatchesTotal, BatchDuration, BatchRetries,
		FieldIssues, IndexCreations,
		MigrationState, Entities,
	)
}
