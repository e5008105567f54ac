// validate.go: settings validation run after unmarshal
package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks settings for consistency and derives the
// excluded-county lookup set. It is called by Load and by tests that build
// Settings directly.
func ValidateSettings(settings *Settings) error {
	if !settings.Database.SQLite.Enabled && !settings.Database.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable database.sqlite or database.mysql")
	}
	if settings.Database.SQLite.Enabled && settings.Database.MySQL.Enabled {
		return fmt.Errorf("both database backends enabled, enable only one of database.sqlite or database.mysql")
	}
	if settings.Database.SQLite.Enabled && settings.Database.SQLite.Path == "" {
		return fmt.Errorf("database.sqlite.path must not be empty")
	}

	if _, err := strconv.Atoi(settings.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q: %w", settings.Server.Port, err)
	}

	if settings.Aggregation.BufferMeters <= 0 {
		return fmt.Errorf("aggregation.buffermeters must be positive, got %v", settings.Aggregation.BufferMeters)
	}
	if settings.Aggregation.Workers < 1 {
		settings.Aggregation.Workers = 1
	}

	if settings.Tiles.ZoomCutover < 0 || settings.Tiles.ZoomCutover > 22 {
		return fmt.Errorf("tiles.zoomcutover must be within 0..22, got %d", settings.Tiles.ZoomCutover)
	}
	if settings.Tiles.BufferUnits < 0 {
		return fmt.Errorf("tiles.bufferunits must not be negative, got %v", settings.Tiles.BufferUnits)
	}
	if settings.Tiles.CacheTTL <= 0 {
		return fmt.Errorf("tiles.cachettl must be positive, got %v", settings.Tiles.CacheTTL)
	}

	settings.excludedSet = make(map[string]struct{}, len(settings.Aggregation.ExcludedCounties))
	for _, county := range settings.Aggregation.ExcludedCounties {
		settings.excludedSet[normalizeCountyKey(county)] = struct{}{}
	}

	return nil
}
