// Package metrics provides Prometheus metric collectors for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AggregationMetrics contains Prometheus metrics for county rebuild operations
type AggregationMetrics struct {
	rebuildsTotal       *prometheus.CounterVec
	rebuildDuration     *prometheus.HistogramVec
	clustersCreated     *prometheus.GaugeVec
	parcelsProcessed    *prometheus.GaugeVec
	invalidGeometries   *prometheus.CounterVec
	unionFailures       *prometheus.CounterVec
	collectors          []prometheus.Collector
}

// NewAggregationMetrics creates and registers new aggregation metrics
func NewAggregationMetrics(registry *prometheus.Registry) (*AggregationMetrics, error) {
	m := &AggregationMetrics{}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AggregationMetrics) initMetrics() error {
	m.rebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_rebuilds_total",
			Help: "Total number of county rebuild operations",
		},
		[]string{"county", "status"}, // status: success, error
	)

	m.rebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_rebuild_duration_seconds",
			Help:    "Time taken for county rebuild operations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
		[]string{"county"},
	)

	m.clustersCreated = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_clusters_created",
			Help: "Number of holdings created by the most recent rebuild of a county",
		},
		[]string{"county"},
	)

	m.parcelsProcessed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_parcels_processed",
			Help: "Number of parcels processed by the most recent rebuild of a county",
		},
		[]string{"county"},
	)

	m.invalidGeometries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_invalid_geometries_total",
			Help: "Total number of parcels dropped for invalid geometry",
		},
		[]string{"county"},
	)

	m.unionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_union_failures_total",
			Help: "Total number of members dropped because a geometric union failed",
		},
		[]string{"county"},
	)

	m.collectors = []prometheus.Collector{
		m.rebuildsTotal,
		m.rebuildDuration,
		m.clustersCreated,
		m.parcelsProcessed,
		m.invalidGeometries,
		m.unionFailures,
	}
	return nil
}

// Describe implements the Collector interface
func (m *AggregationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AggregationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRebuild records one rebuild attempt and its duration
func (m *AggregationMetrics) RecordRebuild(county, status string, duration float64) {
	m.rebuildsTotal.WithLabelValues(county, status).Inc()
	m.rebuildDuration.WithLabelValues(county).Observe(duration)
}

// RecordRebuildCounts records the per-rebuild result counters
func (m *AggregationMetrics) RecordRebuildCounts(county string, clusters, parcels, invalid, unionFailures int) {
	m.clustersCreated.WithLabelValues(county).Set(float64(clusters))
	m.parcelsProcessed.WithLabelValues(county).Set(float64(parcels))
	m.invalidGeometries.WithLabelValues(county).Add(float64(invalid))
	m.unionFailures.WithLabelValues(county).Add(float64(unionFailures))
}
