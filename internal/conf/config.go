// config.go: settings struct and functions to load and save application settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogSettings contains settings for the main application log file.
type LogSettings struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string      // application instance name
	Log  LogSettings // log file settings
}

// ServerSettings contains settings for the HTTP server.
type ServerSettings struct {
	Port    string // port to listen on
	Host    string // host address to bind to
	Metrics bool   // expose prometheus /metrics on the server
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// AggregationSettings controls parcel clustering and county rebuilds.
type AggregationSettings struct {
	BufferMeters      float64  // adjacency buffer distance in meters
	IncludeSingletons bool     // persist single-parcel holdings
	ExcludedCounties  []string // counties served by an external tile source
	Workers           int      // parallel county rebuilds for rebuild-all
}

// TileSettings controls vector tile generation and caching.
type TileSettings struct {
	ZoomCutover int           // zoom level at and above which raw parcels are served
	BufferUnits float64       // tile edge buffer in tile units (extent 4096)
	CacheTTL    time.Duration // tile cache entry lifetime
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug logging

	Main        MainSettings
	Server      ServerSettings
	Database    DatabaseSettings
	Aggregation AggregationSettings
	Tiles       TileSettings

	excludedSet map[string]struct{} // built once by Validate
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// IsCountyExcluded reports whether the given county is excluded from the
// aggregation and tile pipeline. Matching is case-insensitive on the trimmed
// county name; the exclusion set is built once during validation.
func (s *Settings) IsCountyExcluded(county string) bool {
	if s.excludedSet == nil {
		return false
	}
	_, excluded := s.excludedSet[normalizeCountyKey(county)]
	return excluded
}

func normalizeCountyKey(county string) string {
	return strings.ToUpper(strings.TrimSpace(county))
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a config file populated with defaults to the
// first default config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(configPaths[0], 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaults := viper.AllSettings()
	out, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: the working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userConfigDir, "parcelmap"))
	}

	return paths, nil
}
