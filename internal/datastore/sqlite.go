package datastore

import (
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection
func (store *SQLiteStore) Open() error {
	path := store.Settings.Database.SQLite.Path
	if path == "" {
		return errors.Newf("database.sqlite.path is empty").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}

	newLogger := createGormLogger(store.Settings.Debug)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return errors.Newf("failed to open SQLite database: %v", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", path).
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close closes the SQLite database connection
func (store *SQLiteStore) Close() error {
	return store.DataStore.Close()
}
