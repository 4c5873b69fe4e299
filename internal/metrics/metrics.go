// Package metrics registers the Prometheus instruments shared by the
// reconciliation engine, the source set, and the export pass.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceRequests counts adapter calls by source, operation, and outcome.
	SourceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_source_requests_total",
		Help: "Source adapter calls by source, operation and outcome",
	}, []string{"source", "operation", "outcome"})

	// SourceLatency tracks adapter call latency including retries.
	SourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imgcat_source_request_duration_seconds",
		Help:    "Source adapter call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"source", "operation"})

	// Entities counts classification outcomes per level.
	Entities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_entities_total",
		Help: "Entities classified during expansion by level and outcome",
	}, []string{"level", "outcome"})

	// BuildFailures counts failed subtrees by level and error kind.
	BuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_build_failures_total",
		Help: "Failed subtree builds by level and error kind",
	}, []string{"level", "kind"})

	// PartitionDuration tracks the wall time of one coordinator partition.
	PartitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imgcat_partition_duration_seconds",
		Help:    "Coordinator partition duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
	}, []string{"pass"})

	// PartitionsSkipped counts partitions skipped because the journal holds them.
	PartitionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_partitions_skipped_total",
		Help: "Partitions skipped on resumption",
	}, []string{"pass"})

	// HashesRefreshed counts combined hashes rewritten by the refresh pass.
	HashesRefreshed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_hashes_refreshed_total",
		Help: "Combined hashes rewritten by the refresh pass by level",
	}, []string{"level"})

	// ObjectsExported counts index objects written or skipped by the export pass.
	ObjectsExported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcat_export_objects_total",
		Help: "Index objects handled by the export pass",
	}, []string{"result"})
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
