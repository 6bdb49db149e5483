// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Detection defaults shared with the detection service.
const (
	DefaultModelName           = "tile_detector"
	DefaultModelVersion        = "v0"
	DefaultConfidenceThreshold = 0.5
	DefaultNMSIoUThreshold     = 0.5
	EmptyResultFail            = "fail"
	EmptyResultSucceed         = "succeed"
)

// SupportedModelVersions lists the tile detector versions the inference service accepts.
var SupportedModelVersions = []string{"v0", "v1", "v2", "v3"}

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readtimeout", 15*time.Second)
	viper.SetDefault("server.writetimeout", 30*time.Second)
	viper.SetDefault("server.shutdowntimeout", 10*time.Second)
	viper.SetDefault("server.bodylimit", "1M")
	viper.SetDefault("server.corsorigins", []string{"*"})
	viper.SetDefault("server.embeddedworker", true)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.sqlite.path", "handscan.db")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	viper.SetDefault("database.maxopenconns", 25)
	viper.SetDefault("database.maxidleconns", 5)

	viper.SetDefault("storage.provider", "memory")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.usessl", true)
	viper.SetDefault("storage.uploadurlttl", time.Hour)
	viper.SetDefault("storage.readurlttl", time.Hour)

	viper.SetDefault("inference.timeout", 30*time.Second)
	viper.SetDefault("inference.requestspersecond", 10.0)
	viper.SetDefault("inference.burst", 5)

	viper.SetDefault("detection.modelname", DefaultModelName)
	viper.SetDefault("detection.modelversion", DefaultModelVersion)
	viper.SetDefault("detection.confidencethreshold", DefaultConfidenceThreshold)
	viper.SetDefault("detection.nmsiouthreshold", DefaultNMSIoUThreshold)
	viper.SetDefault("detection.emptyresultpolicy", EmptyResultFail)
	viper.SetDefault("detection.sweepinterval", time.Minute)
	viper.SetDefault("detection.sweepage", 2*time.Minute)

	viper.SetDefault("queue.size", 1000)
	viper.SetDefault("queue.archivesize", 100)
	viper.SetDefault("queue.maxretries", 20)
	viper.SetDefault("queue.initialdelay", 2*time.Second)
	viper.SetDefault("queue.maxdelay", 30*time.Second)
	viper.SetDefault("queue.multiplier", 1.5)
	viper.SetDefault("queue.jobtimeout", 30*time.Second)

	viper.SetDefault("uploads.inspectimages", false)
	viper.SetDefault("uploads.tempdir", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "UTC")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/handscan.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")
}
