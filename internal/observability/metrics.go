// Package observability provides metrics and monitoring capabilities for the
// parcelmap application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/landcover/parcelmap/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry    *prometheus.Registry
	Tiles       *metrics.TileMetrics
	Aggregation *metrics.AggregationMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	tileMetrics, err := metrics.NewTileMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile metrics: %w", err)
	}

	aggregationMetrics, err := metrics.NewAggregationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregation metrics: %w", err)
	}

	return &Metrics{
		registry:    registry,
		Tiles:       tileMetrics,
		Aggregation: aggregationMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
