package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landcover/parcelmap/internal/aggregation"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/tiles"
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

func setupController(t *testing.T, excluded ...string) (*Controller, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Server.Port = "8080"
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = ":memory:"
	settings.Aggregation.BufferMeters = 10
	settings.Aggregation.IncludeSingletons = true
	settings.Aggregation.Workers = 2
	settings.Aggregation.ExcludedCounties = excluded
	settings.Tiles.ZoomCutover = 14
	settings.Tiles.BufferUnits = 256
	settings.Tiles.CacheTTL = time.Hour
	require.NoError(t, conf.ValidateSettings(settings))

	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	tileServer := tiles.NewServer(ds, settings, nil)
	rebuilder := aggregation.New(ds, settings, nil)
	return New(ds, settings, tileServer, rebuilder, nil), ds
}

func doRequest(c *Controller, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestGetTileReturnsPayload(t *testing.T) {
	c, ds := setupController(t)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	tile := maptile.At(orb.Point{baseLon + lonDegrees(50), testLat + latDegrees(50)}, maptile.Zoom(14))
	rec := doRequest(c, http.MethodGet, fmt.Sprintf("/tiles/14/%d/%d", tile.X, tile.Y))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.mapbox-vector-tile", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestGetTileAcceptsMvtSuffix(t *testing.T) {
	c, ds := setupController(t)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	tile := maptile.At(orb.Point{baseLon + lonDegrees(50), testLat + latDegrees(50)}, maptile.Zoom(14))
	rec := doRequest(c, http.MethodGet, fmt.Sprintf("/tiles/14/%d/%d.mvt", tile.X, tile.Y))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTileEmptyGivesNoContent(t *testing.T) {
	c, _ := setupController(t)

	rec := doRequest(c, http.MethodGet, "/tiles/14/0/0")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestGetTileRejectsBadCoordinates(t *testing.T) {
	c, _ := setupController(t)

	for name, target := range map[string]string{
		"NonNumeric":   "/tiles/abc/0/0",
		"ZoomTooHigh":  "/tiles/23/0/0",
		"XOutOfRange":  "/tiles/2/4/0",
		"YOutOfRange":  "/tiles/2/0/4",
		"NegativeTile": "/tiles/2/-1/0",
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(c, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRebuildCountyEndpoint(t *testing.T) {
	c, ds := setupController(t)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
		testParcel(2, "Guthrie", "SMITH JOHN", parcelSizeMeters),
	}))

	rec := doRequest(c, http.MethodPost, "/api/v1/rebuild/Guthrie")
	require.Equal(t, http.StatusOK, rec.Code)

	var result aggregation.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Guthrie", result.County)
	assert.Equal(t, 1, result.ClustersCreated)
	assert.Equal(t, 2, result.ParcelsProcessed)

	holdings, err := ds.HoldingsForCounty("Guthrie")
	require.NoError(t, err)
	assert.Len(t, holdings, 1)
}

func TestRebuildExcludedCountyRejected(t *testing.T) {
	c, _ := setupController(t, "Polk")

	rec := doRequest(c, http.MethodPost, "/api/v1/rebuild/Polk")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestRebuildFlushesTileCache(t *testing.T) {
	c, ds := setupController(t)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	tile := maptile.At(orb.Point{baseLon + lonDegrees(50), testLat + latDegrees(50)}, maptile.Zoom(14))
	rec := doRequest(c, http.MethodGet, fmt.Sprintf("/tiles/14/%d/%d", tile.X, tile.Y))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, c.TileServer.CacheStats().Keys)

	rec = doRequest(c, http.MethodPost, "/api/v1/rebuild/Guthrie")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, c.TileServer.CacheStats().Keys)
}

func TestCacheEndpoints(t *testing.T) {
	c, ds := setupController(t)
	require.NoError(t, ds.SaveParcels([]datastore.Parcel{
		testParcel(1, "Guthrie", "SMITH JOHN", 0),
	}))

	tile := maptile.At(orb.Point{baseLon + lonDegrees(50), testLat + latDegrees(50)}, maptile.Zoom(14))
	doRequest(c, http.MethodGet, fmt.Sprintf("/tiles/14/%d/%d", tile.X, tile.Y))

	rec := doRequest(c, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats tiles.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Keys)

	rec = doRequest(c, http.MethodPost, "/api/v1/cache/clear")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, c.TileServer.CacheStats().Keys)
}

func TestHealthEndpoint(t *testing.T) {
	c, _ := setupController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
}
