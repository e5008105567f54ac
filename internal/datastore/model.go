// model.go this code defines the data model for the application
package datastore

import "slices"

// Parcel represents a single cadastral land unit. Rows are supplied by an
// external ingestion process and are immutable here except for the derived
// OwnerNormalized field.
type Parcel struct {
	ID              uint   `gorm:"primaryKey"`
	County          string `gorm:"index:idx_parcels_county;index:idx_parcels_owner_county"`
	ParcelNumber    string `gorm:"index:idx_parcels_number"`
	ParcelClass     string
	OwnerRaw        string
	OwnerNormalized string  `gorm:"index:idx_parcels_owner_county"`
	AreaSqm         float64 // area from the cadastral record, square meters
	Geometry        string  `gorm:"type:text"` // WGS84 GeoJSON polygon

	// Bounding box of Geometry, maintained by ingestion, used for tile
	// envelope queries without a spatial index.
	MinLon float64 `gorm:"index:idx_parcels_bbox"`
	MinLat float64 `gorm:"index:idx_parcels_bbox"`
	MaxLon float64 `gorm:"index:idx_parcels_bbox"`
	MaxLat float64 `gorm:"index:idx_parcels_bbox"`
}

// AggregatedHolding represents one contiguous ownership cluster within one
// county. Holdings are destroyed and rebuilt wholesale per county; they are
// never partially mutated.
type AggregatedHolding struct {
	ID               uint   `gorm:"primaryKey"`
	OwnerNormalized  string `gorm:"index:idx_holdings_owner_county"`
	County           string `gorm:"index:idx_holdings_owner_county;index:idx_holdings_county"`
	ParcelCount      int
	TotalAcres       float64 // additive sum of member areas, not measured union area
	CombinedGeometry string  `gorm:"type:text"` // WGS84 GeoJSON multipolygon

	MinLon float64 `gorm:"index:idx_holdings_bbox"`
	MinLat float64 `gorm:"index:idx_holdings_bbox"`
	MaxLon float64 `gorm:"index:idx_holdings_bbox"`
	MaxLat float64 `gorm:"index:idx_holdings_bbox"`

	Parcels []HoldingParcel `gorm:"foreignKey:HoldingID;constraint:OnDelete:CASCADE"`
}

// HoldingParcel records membership of one parcel in one holding. The unique
// index on ParcelID guarantees a parcel belongs to at most one holding, and
// the table powers the query for parcels not captured by any cluster.
type HoldingParcel struct {
	ID        uint `gorm:"primaryKey"`
	HoldingID uint `gorm:"index:idx_holding_parcels_holding;not null"`
	ParcelID  uint `gorm:"uniqueIndex:idx_holding_parcels_parcel;not null"`
}

// ParcelIDs returns the member parcel ids in ascending order. The Parcels
// association must have been loaded.
func (h *AggregatedHolding) ParcelIDs() []uint {
	ids := make([]uint, 0, len(h.Parcels))
	for _, hp := range h.Parcels {
		ids = append(ids, hp.ParcelID)
	}
	slices.Sort(ids)
	return ids
}

// BBox is a WGS84 bounding box used for envelope queries.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}
