// server.go: the tile-serving component combining generator and cache
package tiles

import (
	"context"
	"log/slog"

	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/logging"
	"github.com/landcover/parcelmap/internal/observability/metrics"
)

// Server serves tiles through a read-through cache. It is constructed
// explicitly and injected into the HTTP layer at startup; there is no
// process-wide cache singleton.
type Server struct {
	generator *Generator
	cache     *Cache
	settings  *conf.Settings
	logger    *slog.Logger
	metrics   *metrics.TileMetrics
}

// NewServer wires a generator and cache for the given store and settings.
// The metrics argument may be nil.
func NewServer(ds datastore.Interface, settings *conf.Settings, m *metrics.TileMetrics) *Server {
	logger := logging.ForService("tiles")
	return &Server{
		generator: NewGenerator(ds, settings, m, logger),
		cache:     NewCache(settings.Tiles.CacheTTL, m),
		settings:  settings,
		logger:    logger,
		metrics:   m,
	}
}

// Tile returns the MVT payload for (z, x, y), consulting the cache first.
// Empty results are not cached, so data becoming available later is never
// masked by a stale no-content entry. A query failure yields no-content for
// the tile rather than an error to the caller; the failure is logged.
func (s *Server) Tile(ctx context.Context, z, x, y uint32) ([]byte, error) {
	key := Key(z, x, y)
	if data, found := s.cache.Get(key); found {
		return data, nil
	}

	data, err := s.generator.Generate(ctx, z, x, y)
	if err != nil {
		s.logger.Error("tile generation failed, serving no-content",
			"z", z, "x", x, "y", y, "error", err)
		if s.metrics != nil {
			s.metrics.RecordTileRequest(layerForZoom(s.settings, z), "error")
		}
		return nil, nil
	}

	layer := layerForZoom(s.settings, z)
	if len(data) == 0 {
		if s.metrics != nil {
			s.metrics.RecordTileRequest(layer, "empty")
		}
		return nil, nil
	}

	s.cache.Set(key, data)
	if s.metrics != nil {
		s.metrics.RecordTileRequest(layer, "ok")
	}
	return data, nil
}

// ClearCache flushes the entire tile cache. Coarse invalidation is
// sufficient because rebuilds are infrequent batch operations.
func (s *Server) ClearCache() {
	s.cache.Flush()
	s.logger.Info("tile cache cleared")
}

// CacheStats returns hit/miss/key counters.
func (s *Server) CacheStats() Stats {
	return s.cache.Stats()
}

func layerForZoom(settings *conf.Settings, z uint32) string {
	if int(z) >= settings.Tiles.ZoomCutover {
		return LayerParcels
	}
	return LayerOwnership
}
