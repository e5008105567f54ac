// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations needed by aggregation and tile generation.
type Interface interface {
	Open() error
	Close() error

	// Parcel operations
	SaveParcels(parcels []Parcel) error
	GetParcel(id uint) (Parcel, error)
	CountParcels(county string) (int64, error)
	CountiesWithParcels() ([]string, error)
	OwnersInCounty(county string) ([]string, error)
	ParcelsForOwner(county, ownerNormalized string) ([]Parcel, error)
	ParcelsInBounds(b BBox) ([]Parcel, error)
	UnassignedParcelsInBounds(b BBox) ([]Parcel, error)
	NormalizeOwners(county string, normalize func(string) string) (int64, error)

	// Holding operations
	HoldingsForCounty(county string) ([]AggregatedHolding, error)
	HoldingsInBounds(b BBox) ([]AggregatedHolding, error)
	ReplaceCountyHoldings(county string, holdings []AggregatedHolding) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}
}
