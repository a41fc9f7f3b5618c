// Package observability provides Prometheus metrics for monitoring scans.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	registry *prometheus.Registry

	// Scan metrics
	PartitionsTotal   *prometheus.CounterVec
	PartitionDuration prometheus.Histogram
	PointsProcessed   prometheus.Counter
	InstancesByStage  *prometheus.CounterVec
	ScanRunsTotal     prometheus.Counter

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec
	StoreQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lineage"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PartitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "partitions_total",
			Help:      "Total number of partitions scanned by outcome",
		}, []string{"status"}),
		PartitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "partition_duration_seconds",
			Help:      "Time spent scanning one partition",
			Buckets:   prometheus.DefBuckets,
		}),
		PointsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "points_processed_total",
			Help:      "Total number of swing points fed to the engine",
		}),
		InstancesByStage: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "instances_total",
			Help:      "Pattern instances counted at each pipeline stage",
		}, []string{"stage"}),
		ScanRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scan runs",
		}),

		StoreQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Store call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		StoreQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Total number of failed store calls",
		}, []string{"operation"}),

		LastSuccessfulScan: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last completed scan run",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPartition records the outcome of one partition task.
func (m *Metrics) RecordPartition(status string, points int, seconds float64) {
	m.PartitionsTotal.WithLabelValues(status).Inc()
	m.PartitionDuration.Observe(seconds)
	m.PointsProcessed.Add(float64(points))
}

// RecordStage adds n instances to a pipeline stage counter.
func (m *Metrics) RecordStage(stage string, n int) {
	if n <= 0 {
		return
	}
	m.InstancesByStage.WithLabelValues(stage).Add(float64(n))
}

// RecordStoreCall records store call metrics.
func (m *Metrics) RecordStoreCall(operation string, seconds float64, err error) {
	m.StoreQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		m.StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRun marks a finished scan run.
func (m *Metrics) RecordRun(unixSeconds int64) {
	m.ScanRunsTotal.Inc()
	m.LastSuccessfulScan.Set(float64(unixSeconds))
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
