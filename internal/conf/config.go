// Package conf loads and validates handscan settings from config.yaml,
// HANDSCAN_* environment variables and command line flags.
package conf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/handscan/handscan/internal/logger"
)

// Settings is the root configuration object.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Server    ServerSettings       `mapstructure:"server" yaml:"server"`
	Database  DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Storage   StorageSettings      `mapstructure:"storage" yaml:"storage"`
	Inference InferenceSettings    `mapstructure:"inference" yaml:"inference"`
	Detection DetectionSettings    `mapstructure:"detection" yaml:"detection"`
	Queue     QueueSettings        `mapstructure:"queue" yaml:"queue"`
	Uploads   UploadSettings       `mapstructure:"uploads" yaml:"uploads"`
	Logging   logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Sentry    SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"readtimeout" yaml:"readtimeout"`
	WriteTimeout    time.Duration `mapstructure:"writetimeout" yaml:"writetimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout" yaml:"shutdowntimeout"`
	BodyLimit       string        `mapstructure:"bodylimit" yaml:"bodylimit"`
	CORSOrigins     []string      `mapstructure:"corsorigins" yaml:"corsorigins"`
	EmbeddedWorker  bool          `mapstructure:"embeddedworker" yaml:"embeddedworker"` // run the detection queue inside serve
}

// Address returns host:port for the HTTP listener.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings selects and configures the SQL backend.
type DatabaseSettings struct {
	Driver             string           `mapstructure:"driver" yaml:"driver"` // sqlite, mysql or postgres
	SQLite             SQLiteSettings   `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL              MySQLSettings    `mapstructure:"mysql" yaml:"mysql"`
	Postgres           PostgresSettings `mapstructure:"postgres" yaml:"postgres"`
	SlowQueryThreshold time.Duration    `mapstructure:"slowquerythreshold" yaml:"slowquerythreshold"`
	MaxOpenConns       int              `mapstructure:"maxopenconns" yaml:"maxopenconns"`
	MaxIdleConns       int              `mapstructure:"maxidleconns" yaml:"maxidleconns"`
}

// SQLiteSettings configures the sqlite database file.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings configures a MySQL connection.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// PostgresSettings configures a PostgreSQL connection.
type PostgresSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// StorageSettings configures object storage for uploaded photos.
type StorageSettings struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"` // s3 or memory
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	Region       string        `mapstructure:"region" yaml:"region"`
	Bucket       string        `mapstructure:"bucket" yaml:"bucket"`
	AccessKey    string        `mapstructure:"accesskey" yaml:"accesskey"`
	SecretKey    string        `mapstructure:"secretkey" yaml:"secretkey"`
	UseSSL       bool          `mapstructure:"usessl" yaml:"usessl"`
	UploadURLTTL time.Duration `mapstructure:"uploadurlttl" yaml:"uploadurlttl"`
	ReadURLTTL   time.Duration `mapstructure:"readurlttl" yaml:"readurlttl"`
}

// InferenceSettings configures the remote tile detection service.
type InferenceSettings struct {
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Token             string        `mapstructure:"token" yaml:"token"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requestspersecond" yaml:"requestspersecond"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
}

// DetectionSettings controls result ingestion.
type DetectionSettings struct {
	ModelName           string        `mapstructure:"modelname" yaml:"modelname"`
	ModelVersion        string        `mapstructure:"modelversion" yaml:"modelversion"`
	ConfidenceThreshold float64       `mapstructure:"confidencethreshold" yaml:"confidencethreshold"`
	NMSIoUThreshold     float64       `mapstructure:"nmsiouthreshold" yaml:"nmsiouthreshold"`
	EmptyResultPolicy   string        `mapstructure:"emptyresultpolicy" yaml:"emptyresultpolicy"` // fail or succeed
	SweepInterval       time.Duration `mapstructure:"sweepinterval" yaml:"sweepinterval"`
	SweepAge            time.Duration `mapstructure:"sweepage" yaml:"sweepage"`
}

// QueueSettings configures the in-process detection job queue.
type QueueSettings struct {
	Size         int           `mapstructure:"size" yaml:"size"`
	ArchiveSize  int           `mapstructure:"archivesize" yaml:"archivesize"`
	MaxRetries   int           `mapstructure:"maxretries" yaml:"maxretries"`
	InitialDelay time.Duration `mapstructure:"initialdelay" yaml:"initialdelay"`
	MaxDelay     time.Duration `mapstructure:"maxdelay" yaml:"maxdelay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
	JobTimeout   time.Duration `mapstructure:"jobtimeout" yaml:"jobtimeout"`
}

// UploadSettings controls post-upload processing.
type UploadSettings struct {
	InspectImages bool   `mapstructure:"inspectimages" yaml:"inspectimages"`
	TempDir       string `mapstructure:"tempdir" yaml:"tempdir"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SentrySettings controls error telemetry.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from configFile (or config.yaml in the default
// search paths when empty), applies defaults and environment overrides, and
// validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and environment bindings, then reads the config file.
// A missing config file is not an error; defaults and environment apply.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, path := range defaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// defaultConfigPaths lists directories searched for config.yaml
func defaultConfigPaths() []string {
	return []string{".", "./config", "/etc/handscan"}
}

// Setting returns the settings loaded by the most recent Load call.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
