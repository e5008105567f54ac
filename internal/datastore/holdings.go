// holdings.go: queries against the aggregated holdings table
package datastore

import (
	"github.com/landcover/parcelmap/internal/errors"
	"gorm.io/gorm"
)

// HoldingsForCounty returns the holdings of one county with member parcel ids
// loaded, ordered by owner then id for stable comparison.
func (ds *DataStore) HoldingsForCounty(county string) ([]AggregatedHolding, error) {
	var holdings []AggregatedHolding
	err := ds.DB.
		Preload("Parcels", func(db *gorm.DB) *gorm.DB { return db.Order("parcel_id") }).
		Where("county = ?", county).
		Order("owner_normalized, id").
		Find(&holdings).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Build()
	}
	return holdings, nil
}

// HoldingsInBounds returns holdings whose bounding box intersects b, ordered
// by ascending id for deterministic tile output.
func (ds *DataStore) HoldingsInBounds(b BBox) ([]AggregatedHolding, error) {
	var holdings []AggregatedHolding
	err := bboxCondition(ds.DB.Model(&AggregatedHolding{}), b).
		Order("id").
		Find(&holdings).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return holdings, nil
}

// ReplaceCountyHoldings atomically replaces all holdings of one county with
// the supplied set. The truncate and reinsert happen inside one transaction
// so readers never observe a half-rebuilt county; other counties are
// untouched.
func (ds *DataStore) ReplaceCountyHoldings(county string, holdings []AggregatedHolding) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM holding_parcels WHERE holding_id IN (SELECT id FROM aggregated_holdings WHERE county = ?)",
			county).Error; err != nil {
			return err
		}
		if err := tx.Where("county = ?", county).Delete(&AggregatedHolding{}).Error; err != nil {
			return err
		}
		if len(holdings) == 0 {
			return nil
		}
		// Creating the holdings also inserts their HoldingParcel associations.
		return tx.Create(&holdings).Error
	})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("county", county).
			Context("holdings", len(holdings)).
			Build()
	}
	return nil
}
