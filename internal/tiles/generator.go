// Package tiles converts slippy-map tile coordinates into Mapbox Vector Tile
// payloads backed by the parcel and holdings tables, with a read-through TTL
// cache in front of generation.
package tiles

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/geo"
	"github.com/landcover/parcelmap/internal/observability/metrics"
)

const (
	// LayerOwnership is the low-zoom layer built from aggregated holdings.
	LayerOwnership = "ownership"
	// LayerParcels is the high-zoom layer built from raw parcel rows.
	LayerParcels = "parcels"

	// tileExtent is the MVT coordinate extent of one tile.
	tileExtent = 4096.0
)

// Generator converts a tile coordinate into a binary vector-tile payload.
// Generation is stateless and read-only against the database; concurrent
// calls need no mutual exclusion.
type Generator struct {
	ds       datastore.Interface
	settings *conf.Settings
	logger   *slog.Logger
	metrics  *metrics.TileMetrics
}

// NewGenerator returns a tile generator. The metrics argument may be nil.
func NewGenerator(ds datastore.Interface, settings *conf.Settings, m *metrics.TileMetrics, logger *slog.Logger) *Generator {
	return &Generator{ds: ds, settings: settings, logger: logger, metrics: m}
}

// Generate returns the MVT payload for (z, x, y), or nil when no feature
// intersects the tile. Identical coordinates against unchanged data always
// produce an identical payload: features are queried in id order and the
// encoder sorts attribute keys.
func (g *Generator) Generate(ctx context.Context, z, x, y uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tile := maptile.New(x, y, maptile.Zoom(z))
	bound := tile.Bound(g.settings.Tiles.BufferUnits / tileExtent)
	bbox := datastore.BBox{
		MinLon: bound.Min[0],
		MinLat: bound.Min[1],
		MaxLon: bound.Max[0],
		MaxLat: bound.Max[1],
	}

	start := time.Now()

	var (
		layerName string
		fc        *geojson.FeatureCollection
		err       error
	)
	if int(z) >= g.settings.Tiles.ZoomCutover {
		layerName = LayerParcels
		fc, err = g.parcelFeatures(bbox)
	} else {
		layerName = LayerOwnership
		fc, err = g.ownershipFeatures(bbox)
	}
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(layerName, fc)
	layers := mvt.Layers{layer}
	layers.ProjectToTile(tile)

	buf := g.settings.Tiles.BufferUnits
	layers.Clip(orb.Bound{
		Min: orb.Point{-buf, -buf},
		Max: orb.Point{tileExtent + buf, tileExtent + buf},
	})

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, err
	}

	if g.metrics != nil {
		g.metrics.RecordTileGeneration(layerName, time.Since(start).Seconds(), len(data))
	}
	return data, nil
}

// parcelFeatures builds the high-zoom layer from raw parcel rows.
func (g *Generator) parcelFeatures(bbox datastore.BBox) (*geojson.FeatureCollection, error) {
	parcels, err := g.ds.ParcelsInBounds(bbox)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for i := range parcels {
		p := &parcels[i]
		geometry, err := geo.ParseGeoJSON(p.Geometry)
		if err != nil {
			// broken parcels vanish from output with a server-side log entry
			g.logger.Warn("skipping parcel with invalid geometry in tile",
				"parcel_id", p.ID, "error", err)
			continue
		}
		f := geojson.NewFeature(geometry)
		f.ID = float64(p.ID)
		f.Properties = geojson.Properties{
			"id":               float64(p.ID),
			"county":           p.County,
			"parcel_number":    p.ParcelNumber,
			"parcel_class":     p.ParcelClass,
			"owner":            p.OwnerRaw,
			"owner_normalized": p.OwnerNormalized,
			"acres":            geo.Acres(p.AreaSqm),
		}
		fc.Append(f)
	}
	return fc, nil
}

// ownershipFeatures builds the low-zoom layer from aggregated holdings of
// non-excluded counties, plus any parcel not captured by a holding so no
// ownership silently disappears from the map.
func (g *Generator) ownershipFeatures(bbox datastore.BBox) (*geojson.FeatureCollection, error) {
	holdings, err := g.ds.HoldingsInBounds(bbox)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for i := range holdings {
		h := &holdings[i]
		if g.settings.IsCountyExcluded(h.County) {
			continue
		}
		geometry, err := geo.ParseGeoJSON(h.CombinedGeometry)
		if err != nil {
			g.logger.Warn("skipping holding with invalid combined geometry in tile",
				"holding_id", h.ID, "error", err)
			continue
		}
		f := geojson.NewFeature(geometry)
		f.ID = float64(h.ID)
		f.Properties = geojson.Properties{
			"owner":        h.OwnerNormalized,
			"county":       h.County,
			"parcel_count": float64(h.ParcelCount),
			"acres":        h.TotalAcres,
		}
		fc.Append(f)
	}

	unassigned, err := g.ds.UnassignedParcelsInBounds(bbox)
	if err != nil {
		return nil, err
	}
	for i := range unassigned {
		p := &unassigned[i]
		if g.settings.IsCountyExcluded(p.County) {
			continue
		}
		geometry, err := geo.ParseGeoJSON(p.Geometry)
		if err != nil {
			g.logger.Warn("skipping unassigned parcel with invalid geometry in tile",
				"parcel_id", p.ID, "error", err)
			continue
		}
		f := geojson.NewFeature(geometry)
		f.ID = float64(p.ID)
		f.Properties = geojson.Properties{
			"owner":        p.OwnerNormalized,
			"county":       p.County,
			"parcel_count": float64(1),
			"acres":        geo.Acres(p.AreaSqm),
		}
		fc.Append(f)
	}

	return fc, nil
}
