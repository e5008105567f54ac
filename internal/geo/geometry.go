// Package geo provides the geometry primitives shared by parcel aggregation
// and tile generation: GeoJSON parsing with validation, polygon union, and
// metric distance tests between WGS84 geometries.
package geo

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	sf "github.com/peterstace/simplefeatures/geom"

	"github.com/landcover/parcelmap/internal/errors"
)

// SquareMetersPerAcre converts cadastral square meters to acres.
const SquareMetersPerAcre = 4046.86

// Acres converts an area in square meters to acres.
func Acres(areaSqm float64) float64 {
	return areaSqm / SquareMetersPerAcre
}

// ParseGeoJSON decodes a WGS84 GeoJSON geometry string into an orb geometry.
// The geometry must be a non-empty Polygon or MultiPolygon and must pass OGC
// validity checks; anything else is an invalid-geometry error.
func ParseGeoJSON(data string) (orb.Geometry, error) {
	if data == "" {
		return nil, errors.Newf("empty geometry").
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}

	g, err := geojson.UnmarshalGeometry([]byte(data))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}

	geometry := g.Geometry()
	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, errors.Newf("geometry type %s is not a polygon", geometry.GeoJSONType()).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}

	// simplefeatures validates ring closure, self-intersection and winding
	// on construction, which orb's decoder does not.
	if _, err := toSimple(geometry); err != nil {
		return nil, err
	}

	return geometry, nil
}

// MarshalGeoJSON encodes an orb geometry as a GeoJSON geometry string.
func MarshalGeoJSON(g orb.Geometry) (string, error) {
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
	return string(data), nil
}

// ToMultiPolygon normalizes a polygonal geometry to a MultiPolygon.
func ToMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	default:
		return nil, errors.Newf("geometry type %s is not polygonal", g.GeoJSONType()).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
}

// toSimple converts an orb geometry to a simplefeatures geometry through
// GeoJSON. Construction validates the geometry.
func toSimple(g orb.Geometry) (sf.Geometry, error) {
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return sf.Geometry{}, errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
	sg, err := sf.UnmarshalGeoJSON(data)
	if err != nil {
		return sf.Geometry{}, errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
	return sg, nil
}

// fromSimple converts a simplefeatures geometry back to orb through GeoJSON.
func fromSimple(sg sf.Geometry) (orb.Geometry, error) {
	data, err := json.Marshal(sg)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryInvalidGeometry).
			Component("geo").
			Build()
	}
	return g.Geometry(), nil
}

// Union returns the geometric union of a and b.
func Union(a, b orb.Geometry) (orb.Geometry, error) {
	sa, err := toSimple(a)
	if err != nil {
		return nil, err
	}
	sb, err := toSimple(b)
	if err != nil {
		return nil, err
	}
	merged, err := sf.Union(sa, sb)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryUnionFailure).
			Component("geo").
			Build()
	}
	return fromSimple(merged)
}

// Prepared caches the projected form of a geometry so repeated metric
// distance tests against it avoid re-projection.
type Prepared struct {
	geometry orb.Geometry // WGS84
	mercator sf.Geometry  // Web-Mercator projection
	bound    orb.Bound    // WGS84 bound
	lat      float64      // center latitude, for mercator scale correction
}

// Prepare validates and projects a WGS84 geometry for distance testing.
func Prepare(g orb.Geometry) (*Prepared, error) {
	// project.Geometry mutates coordinate slices in place, so project a clone.
	projected := project.Geometry(orb.Clone(g), project.WGS84.ToMercator)
	mercator, err := toSimple(projected)
	if err != nil {
		return nil, err
	}
	bound := g.Bound()
	return &Prepared{
		geometry: g,
		mercator: mercator,
		bound:    bound,
		lat:      bound.Center()[1],
	}, nil
}

// Geometry returns the original WGS84 geometry.
func (p *Prepared) Geometry() orb.Geometry {
	return p.geometry
}

// Bound returns the WGS84 bounding box.
func (p *Prepared) Bound() orb.Bound {
	return p.bound
}

// WithinDistance reports whether p and other intersect or come within the
// given ground distance in meters. The Web-Mercator distance is corrected for
// latitude distortion at the midpoint of the two geometries.
func (p *Prepared) WithinDistance(other *Prepared, meters float64) bool {
	if sf.Intersects(p.mercator, other.mercator) {
		return true
	}
	d, ok := sf.Distance(p.mercator, other.mercator)
	if !ok {
		return false
	}
	lat := (p.lat + other.lat) / 2
	return d <= meters/math.Cos(lat*math.Pi/180)
}

// BoundsWithin is a cheap bounding-box prefilter for WithinDistance: it
// reports whether the WGS84 bounds of p and other, padded by the given ground
// distance, intersect. A false result means the geometries cannot be within
// that distance.
func (p *Prepared) BoundsWithin(other *Prepared, meters float64) bool {
	padLat := meters / metersPerDegreeLat
	cosLat := math.Cos(p.lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	padLon := meters / (metersPerDegreeLat * cosLat)

	padded := orb.Bound{
		Min: orb.Point{p.bound.Min[0] - padLon, p.bound.Min[1] - padLat},
		Max: orb.Point{p.bound.Max[0] + padLon, p.bound.Max[1] + padLat},
	}
	return padded.Intersects(other.bound)
}

// metersPerDegreeLat is the approximate ground length of one degree of
// latitude, adequate for padding bounding boxes by tens of meters.
const metersPerDegreeLat = 111320.0
