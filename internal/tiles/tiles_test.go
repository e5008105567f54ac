package tiles

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landcover/parcelmap/internal/aggregation"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
)

const (
	testLat          = 41.6
	baseLon          = -94.0
	parcelSizeMeters = 100.0
)

var cosTestLat = math.Cos(testLat * math.Pi / 180)

func lonDegrees(meters float64) float64 {
	return meters / (111320.0 * cosTestLat)
}

func latDegrees(meters float64) float64 {
	return meters / 111320.0
}

func squareAt(offsetMeters float64) string {
	minLon := baseLon + lonDegrees(offsetMeters)
	maxLon := baseLon + lonDegrees(offsetMeters+parcelSizeMeters)
	minLat := testLat
	maxLat := testLat + latDegrees(parcelSizeMeters)
	return fmt.Sprintf(
		`{"type":"Polygon","coordinates":[[[%.10f,%.10f],[%.10f,%.10f],[%.10f,%.10f],[%.10f,%.10f],[%.10f,%.10f]]]}`,
		minLon, minLat, maxLon, minLat, maxLon, maxLat, minLon, maxLat, minLon, minLat)
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Server.Port = "8080"
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = ":memory:"
	s.Aggregation.BufferMeters = 10
	s.Aggregation.IncludeSingletons = true
	s.Aggregation.Workers = 2
	s.Tiles.ZoomCutover = 14
	s.Tiles.BufferUnits = 256
	s.Tiles.CacheTTL = time.Hour
	require.NoError(t, conf.ValidateSettings(s))
	return s
}

func openTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func testParcel(id uint, county, owner string, offsetMeters float64) datastore.Parcel {
	return datastore.Parcel{
		ID:              id,
		County:          county,
		ParcelNumber:    fmt.Sprintf("PN-%03d", id),
		ParcelClass:     "AG",
		OwnerRaw:        owner,
		OwnerNormalized: owner,
		AreaSqm:         4046.86,
		Geometry:        squareAt(offsetMeters),
		MinLon:          baseLon + lonDegrees(offsetMeters),
		MinLat:          testLat,
		MaxLon:          baseLon + lonDegrees(offsetMeters+parcelSizeMeters),
		MaxLat:          testLat + latDegrees(parcelSizeMeters),
	}
}

// tileFor returns the tile containing the fixture parcels at the given zoom.
func tileFor(z uint32) maptile.Tile {
	return maptile.At(orb.Point{baseLon + lonDegrees(parcelSizeMeters/2), testLat + latDegrees(parcelSizeMeters/2)}, maptile.Zoom(z))
}

func TestGenerateParcelsLayerAtHighZoom(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	gen := NewGenerator(ds, settings, nil, nil)
	tile := tileFor(14)
	data, err := gen.Generate(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, LayerParcels, layers[0].Name)
	require.Len(t, layers[0].Features, 1)

	props := layers[0].Features[0].Properties
	assert.Equal(t, "Guthrie", props["county"])
	assert.Equal(t, "PN-001", props["parcel_number"])
	assert.Equal(t, "SMITH JOHN", props["owner"])
	assert.InDelta(t, 1.0, props["acres"], 1e-6)
}

func TestGenerateOwnershipLayerAtLowZoom(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
		testParcel(2, "Guthrie", "SMITH JOHN", parcelSizeMeters),
	}))
	_, err := aggregation.New(ds, settings, nil).RebuildCounty(context.Background(), "Guthrie")
	require.NoError(t, err)

	gen := NewGenerator(ds, settings, nil, nil)
	tile := tileFor(10)
	data, err := gen.Generate(context.Background(), 10, tile.X, tile.Y)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, LayerOwnership, layers[0].Name)
	require.Len(t, layers[0].Features, 1)

	props := layers[0].Features[0].Properties
	assert.Equal(t, "SMITH JOHN", props["owner"])
	assert.EqualValues(t, 2, props["parcel_count"])
	assert.InDelta(t, 2.0, props["acres"], 1e-6)
	assert.NotContains(t, props, "parcel_number")
}

func TestGenerateOwnershipIncludesUnassignedParcels(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	// no rebuild: the parcel belongs to no holding
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	gen := NewGenerator(ds, settings, nil, nil)
	tile := tileFor(10)
	data, err := gen.Generate(context.Background(), 10, tile.X, tile.Y)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.Len(t, layers[0].Features, 1)
	assert.EqualValues(t, 1, layers[0].Features[0].Properties["parcel_count"])
}

func TestGenerateSkipsExcludedCounty(t *testing.T) {
	settings := testSettings(t)
	settings.Aggregation.ExcludedCounties = []string{"Guthrie"}
	require.NoError(t, conf.ValidateSettings(settings))
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	gen := NewGenerator(ds, settings, nil, nil)
	tile := tileFor(10)
	data, err := gen.Generate(context.Background(), 10, tile.X, tile.Y)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGenerateEmptyTileReturnsNil(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	gen := NewGenerator(ds, settings, nil, nil)
	data, err := gen.Generate(context.Background(), 14, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGenerateDeterministic(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
		testParcel(2, "Guthrie", "BAKER ANN", parcelSizeMeters+50),
	}))

	gen := NewGenerator(ds, settings, nil, nil)
	tile := tileFor(14)
	first, err := gen.Generate(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "identical inputs must produce identical payloads")
}

func TestServerCachesGeneratedTiles(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	server := NewServer(ds, settings, nil)
	tile := tileFor(14)

	first, err := server.Tile(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := server.Tile(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	stats := server.CacheStats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Keys)
}

func TestServerDoesNotCacheEmptyTiles(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	server := NewServer(ds, settings, nil)

	for i := 0; i < 2; i++ {
		data, err := server.Tile(context.Background(), 14, 0, 0)
		require.NoError(t, err)
		assert.Nil(t, data)
	}

	stats := server.CacheStats()
	assert.EqualValues(t, 0, stats.Hits)
	assert.EqualValues(t, 2, stats.Misses)
	assert.Equal(t, 0, stats.Keys)
}

func TestServerClearCache(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	server := NewServer(ds, settings, nil)
	tile := tileFor(14)
	_, err := server.Tile(context.Background(), 14, tile.X, tile.Y)
	require.NoError(t, err)
	require.Equal(t, 1, server.CacheStats().Keys)

	server.ClearCache()
	assert.Equal(t, 0, server.CacheStats().Keys)
}

func TestCacheKeyFormat(t *testing.T) {
	assert.Equal(t, "14/100/200", Key(14, 100, 200))
}
