// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "HANDSCAN_DEBUG", validateEnvBool},
		{"server.port", "HANDSCAN_PORT", validateEnvPort},

		{"database.driver", "HANDSCAN_DATABASE_DRIVER", validateEnvDriver},
		{"database.sqlite.path", "HANDSCAN_SQLITE_PATH", nil},
		{"database.mysql.host", "HANDSCAN_MYSQL_HOST", nil},
		{"database.mysql.password", "HANDSCAN_MYSQL_PASSWORD", nil},
		{"database.postgres.host", "HANDSCAN_POSTGRES_HOST", nil},
		{"database.postgres.password", "HANDSCAN_POSTGRES_PASSWORD", nil},

		{"storage.endpoint", "HANDSCAN_STORAGE_ENDPOINT", nil},
		{"storage.bucket", "HANDSCAN_STORAGE_BUCKET", nil},
		{"storage.accesskey", "HANDSCAN_STORAGE_ACCESS_KEY", nil},
		{"storage.secretkey", "HANDSCAN_STORAGE_SECRET_KEY", nil},

		{"inference.endpoint", "HANDSCAN_INFERENCE_ENDPOINT", nil},
		{"inference.token", "HANDSCAN_INFERENCE_TOKEN", nil},

		{"detection.modelversion", "HANDSCAN_MODEL_VERSION", validateEnvModelVersion},
		{"detection.confidencethreshold", "HANDSCAN_CONFIDENCE_THRESHOLD", validateEnvThreshold},

		{"sentry.dsn", "HANDSCAN_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every variable and collects validation warnings
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDriver(value string) error {
	if !slices.Contains(supportedDrivers, value) {
		return fmt.Errorf("driver must be one of %v", supportedDrivers)
	}
	return nil
}

func validateEnvModelVersion(value string) error {
	if !slices.Contains(SupportedModelVersions, value) {
		return fmt.Errorf("model version must be one of %v", SupportedModelVersions)
	}
	return nil
}

func validateEnvThreshold(value string) error {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if threshold < 0.0 || threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0, got %g", threshold)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
