// parcels.go: queries against the raw parcel table
package datastore

import (
	"github.com/landcover/parcelmap/internal/errors"
	"gorm.io/gorm"
)

// normalizeBatchSize bounds memory use when renormalizing owner names.
const normalizeBatchSize = 500

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return sqlDB.Close()
}

// bboxCondition narrows a query to rows whose bounding box intersects b.
func bboxCondition(db *gorm.DB, b BBox) *gorm.DB {
	return db.Where("max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?",
		b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)
}

// SaveParcels inserts parcel rows in one transaction. Used by ingestion
// tooling and test fixtures.
func (ds *DataStore) SaveParcels(parcels []Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	if err := ds.DB.Create(&parcels).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("count", len(parcels)).
			Build()
	}
	return nil
}

// GetParcel retrieves a single parcel by id.
func (ds *DataStore) GetParcel(id uint) (Parcel, error) {
	var parcel Parcel
	if err := ds.DB.First(&parcel, id).Error; err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = errors.CategoryNotFound
		}
		return Parcel{}, errors.New(err).
			Category(category).
			Component("datastore").
			Context("parcel_id", id).
			Build()
	}
	return parcel, nil
}

// CountParcels returns the number of parcels in a county.
func (ds *DataStore) CountParcels(county string) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Parcel{}).Where("county = ?", county).Count(&count).Error; err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Build()
	}
	return count, nil
}

// CountiesWithParcels returns the distinct counties present in the parcel
// table, sorted ascending.
func (ds *DataStore) CountiesWithParcels() ([]string, error) {
	var counties []string
	err := ds.DB.Model(&Parcel{}).
		Distinct("county").
		Order("county").
		Pluck("county", &counties).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return counties, nil
}

// OwnersInCounty returns the distinct normalized owner keys in a county,
// sorted ascending for deterministic rebuild order.
func (ds *DataStore) OwnersInCounty(county string) ([]string, error) {
	var owners []string
	err := ds.DB.Model(&Parcel{}).
		Distinct("owner_normalized").
		Where("county = ? AND owner_normalized <> ''", county).
		Order("owner_normalized").
		Pluck("owner_normalized", &owners).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Build()
	}
	return owners, nil
}

// ParcelsForOwner returns all parcels of one (ownerNormalized, county) pair,
// ordered by ascending parcel id.
func (ds *DataStore) ParcelsForOwner(county, ownerNormalized string) ([]Parcel, error) {
	var parcels []Parcel
	err := ds.DB.
		Where("county = ? AND owner_normalized = ?", county, ownerNormalized).
		Order("id").
		Find(&parcels).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Context("owner", ownerNormalized).
			Build()
	}
	return parcels, nil
}

// ParcelsInBounds returns parcels whose bounding box intersects b, ordered by
// ascending id for deterministic tile output.
func (ds *DataStore) ParcelsInBounds(b BBox) ([]Parcel, error) {
	var parcels []Parcel
	err := bboxCondition(ds.DB, b).Order("id").Find(&parcels).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return parcels, nil
}

// UnassignedParcelsInBounds returns parcels in b that are not a member of any
// aggregated holding, ordered by ascending id. These supplement the ownership
// layer so no parcel silently disappears from low-zoom tiles.
func (ds *DataStore) UnassignedParcelsInBounds(b BBox) ([]Parcel, error) {
	var parcels []Parcel
	query := ds.DB.Model(&Parcel{}).
		Joins("LEFT JOIN holding_parcels ON holding_parcels.parcel_id = parcels.id").
		Where("holding_parcels.parcel_id IS NULL")
	err := bboxCondition(query, b).Order("parcels.id").Find(&parcels).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return parcels, nil
}

// NormalizeOwners recomputes the derived owner_normalized column for every
// parcel in a county using the supplied pure function, and returns the number
// of rows that changed.
func (ds *DataStore) NormalizeOwners(county string, normalize func(string) string) (int64, error) {
	var updated int64
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var batch []Parcel
		result := tx.Select("id", "owner_raw", "owner_normalized").
			Where("county = ?", county).
			FindInBatches(&batch, normalizeBatchSize, func(_ *gorm.DB, _ int) error {
				for i := range batch {
					want := normalize(batch[i].OwnerRaw)
					if want == batch[i].OwnerNormalized {
						continue
					}
					if err := tx.Model(&Parcel{}).
						Where("id = ?", batch[i].ID).
						Update("owner_normalized", want).Error; err != nil {
						return err
					}
					updated++
				}
				return nil
			})
		return result.Error
	})
	if err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Build()
	}
	return updated, nil
}
