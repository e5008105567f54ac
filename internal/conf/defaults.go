// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "parcelmap")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "parcelmap.log")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.metrics", true)

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "parcelmap.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "parcelmap")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "parcelmap")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("aggregation.buffermeters", 10.0)
	viper.SetDefault("aggregation.includesingletons", true)
	viper.SetDefault("aggregation.excludedcounties", []string{})
	viper.SetDefault("aggregation.workers", 4)

	viper.SetDefault("tiles.zoomcutover", 14)
	viper.SetDefault("tiles.bufferunits", 256.0)
	viper.SetDefault("tiles.cachettl", time.Hour)
}
