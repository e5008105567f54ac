package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Server.Port = "8080"
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = ":memory:"
	s.Aggregation.BufferMeters = 10
	s.Aggregation.Workers = 4
	s.Tiles.ZoomCutover = 14
	s.Tiles.BufferUnits = 256
	s.Tiles.CacheTTL = time.Hour
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Run("ValidDefaults", func(t *testing.T) {
		s := validSettings()
		require.NoError(t, ValidateSettings(s))
	})

	t.Run("NoDatabaseBackend", func(t *testing.T) {
		s := validSettings()
		s.Database.SQLite.Enabled = false
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("BothDatabaseBackends", func(t *testing.T) {
		s := validSettings()
		s.Database.MySQL.Enabled = true
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("BadPort", func(t *testing.T) {
		s := validSettings()
		s.Server.Port = "http"
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("NegativeBuffer", func(t *testing.T) {
		s := validSettings()
		s.Aggregation.BufferMeters = -1
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("ZeroCacheTTL", func(t *testing.T) {
		s := validSettings()
		s.Tiles.CacheTTL = 0
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("WorkersFloor", func(t *testing.T) {
		s := validSettings()
		s.Aggregation.Workers = 0
		require.NoError(t, ValidateSettings(s))
		assert.Equal(t, 1, s.Aggregation.Workers)
	})
}

func TestIsCountyExcluded(t *testing.T) {
	s := validSettings()
	s.Aggregation.ExcludedCounties = []string{"Polk", " story "}
	require.NoError(t, ValidateSettings(s))

	assert.True(t, s.IsCountyExcluded("Polk"))
	assert.True(t, s.IsCountyExcluded("POLK"))
	assert.True(t, s.IsCountyExcluded("Story"))
	assert.False(t, s.IsCountyExcluded("Guthrie"))
}

func TestIsCountyExcludedWithoutValidation(t *testing.T) {
	s := &Settings{}
	s.Aggregation.ExcludedCounties = []string{"Polk"}

	// predicate is inert until the lookup set is derived
	assert.False(t, s.IsCountyExcluded("Polk"))
}
