package datastore

import (
	"log"
	"os"
	"time"

	"github.com/landcover/parcelmap/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. Tile envelope queries stay well under this; rebuild batch
// inserts can approach it on large counties.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration runs GORM auto-migration for all tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Parcel{}, &AggregatedHolding{}, &HoldingParcel{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %v", dbType, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		log.Printf("%s database connected and migrated: %s", dbType, connectionInfo)
	}

	return nil
}
