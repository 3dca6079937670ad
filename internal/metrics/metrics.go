// Package metrics exposes strata's Prometheus instrumentation. Grounded
// 1:1 on malbeclabs-lake's indexer/pkg/metrics/metrics.go promauto
// package-var style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_build_info",
			Help: "Build information of the strata pipeline engine",
		},
		[]string{"version", "commit", "date"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"dest_layer", "status"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strata_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		},
		[]string{"dest_layer"},
	)

	RowsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_ingested_total",
			Help: "Total number of source rows read",
		},
		[]string{"dataset"},
	)

	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_written_total",
			Help: "Total number of rows committed to a new snapshot",
		},
		[]string{"dataset"},
	)

	RowsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_rejected_total",
			Help: "Total number of rows rejected by filters or parse failures",
		},
		[]string{"dataset"},
	)

	DqViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_dq_violations_total",
			Help: "Total number of data-quality rule violations observed",
		},
		[]string{"dataset", "rule_code"},
	)

	DedupDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_dedup_dropped_total",
			Help: "Total number of rows dropped by anti-join deduplication",
		},
		[]string{"dataset"},
	)

	CatalogOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_catalog_operation_total",
			Help: "Total number of external catalog (DuckDB CLI) operations",
		},
		[]string{"status"},
	)
)
