package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TileMetrics contains Prometheus metrics for tile generation and caching
type TileMetrics struct {
	tileRequestsTotal  *prometheus.CounterVec
	tileGenDuration    *prometheus.HistogramVec
	tileBytesHist      *prometheus.HistogramVec
	cacheOpsTotal      *prometheus.CounterVec
	cacheKeysGauge     prometheus.Gauge
	collectors         []prometheus.Collector
}

// NewTileMetrics creates and registers new tile metrics
func NewTileMetrics(registry *prometheus.Registry) (*TileMetrics, error) {
	m := &TileMetrics{}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TileMetrics) initMetrics() error {
	m.tileRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiles_requests_total",
			Help: "Total number of tile requests by layer and outcome",
		},
		[]string{"layer", "status"}, // status: ok, empty, error
	)

	m.tileGenDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiles_generation_duration_seconds",
			Help:    "Time taken to generate a tile on cache miss",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"layer"},
	)

	m.tileBytesHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiles_payload_bytes",
			Help:    "Size of generated tile payloads",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"layer"},
	)

	m.cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiles_cache_operations_total",
			Help: "Total number of tile cache operations",
		},
		[]string{"operation"}, // operation: hit, miss, store, flush
	)

	m.cacheKeysGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tiles_cache_keys",
			Help: "Number of tiles currently cached",
		},
	)

	m.collectors = []prometheus.Collector{
		m.tileRequestsTotal,
		m.tileGenDuration,
		m.tileBytesHist,
		m.cacheOpsTotal,
		m.cacheKeysGauge,
	}
	return nil
}

// Describe implements the Collector interface
func (m *TileMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *TileMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordTileRequest records one tile request outcome
func (m *TileMetrics) RecordTileRequest(layer, status string) {
	m.tileRequestsTotal.WithLabelValues(layer, status).Inc()
}

// RecordTileGeneration records a generated tile's duration and size
func (m *TileMetrics) RecordTileGeneration(layer string, duration float64, bytes int) {
	m.tileGenDuration.WithLabelValues(layer).Observe(duration)
	m.tileBytesHist.WithLabelValues(layer).Observe(float64(bytes))
}

// RecordCacheOperation records one cache operation
func (m *TileMetrics) RecordCacheOperation(operation string) {
	m.cacheOpsTotal.WithLabelValues(operation).Inc()
}

// SetCacheKeys sets the current cached tile count
func (m *TileMetrics) SetCacheKeys(n int) {
	m.cacheKeysGauge.Set(float64(n))
}
