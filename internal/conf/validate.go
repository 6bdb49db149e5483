// conf/validate.go

package conf

import (
	"fmt"
	"slices"
)

var (
	supportedDrivers          = []string{"sqlite", "mysql", "postgres"}
	supportedStorageProviders = []string{"s3", "memory"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateServerSettings,
		validateDatabaseSettings,
		validateStorageSettings,
		validateDetectionSettings,
		validateQueueSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(s *Settings) []string {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return []string{fmt.Sprintf("server.port must be between 1 and 65535, got %d", s.Server.Port)}
	}
	return nil
}

func validateDatabaseSettings(s *Settings) []string {
	var errs []string
	db := s.Database
	switch db.Driver {
	case "sqlite":
		if db.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required")
		}
	case "mysql":
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			errs = append(errs, "database.mysql.host and database.mysql.database are required")
		}
	case "postgres":
		if db.Postgres.Host == "" || db.Postgres.Database == "" {
			errs = append(errs, "database.postgres.host and database.postgres.database are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be one of %v, got %q", supportedDrivers, db.Driver))
	}
	return errs
}

func validateStorageSettings(s *Settings) []string {
	var errs []string
	st := s.Storage
	if !slices.Contains(supportedStorageProviders, st.Provider) {
		errs = append(errs, fmt.Sprintf("storage.provider must be one of %v, got %q", supportedStorageProviders, st.Provider))
	}
	if st.Provider == "s3" && (st.Endpoint == "" || st.Bucket == "") {
		errs = append(errs, "storage.endpoint and storage.bucket are required for the s3 provider")
	}
	if st.UploadURLTTL <= 0 || st.ReadURLTTL <= 0 {
		errs = append(errs, "storage URL TTLs must be positive")
	}
	return errs
}

func validateDetectionSettings(s *Settings) []string {
	var errs []string
	d := s.Detection
	if !slices.Contains(SupportedModelVersions, d.ModelVersion) {
		errs = append(errs, fmt.Sprintf("detection.modelversion must be one of %v, got %q", SupportedModelVersions, d.ModelVersion))
	}
	if d.ModelName == "" {
		errs = append(errs, "detection.modelname is required")
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("detection.confidencethreshold must be between 0.0 and 1.0, got %g", d.ConfidenceThreshold))
	}
	if d.NMSIoUThreshold < 0 || d.NMSIoUThreshold > 1 {
		errs = append(errs, fmt.Sprintf("detection.nmsiouthreshold must be between 0.0 and 1.0, got %g", d.NMSIoUThreshold))
	}
	if d.EmptyResultPolicy != EmptyResultFail && d.EmptyResultPolicy != EmptyResultSucceed {
		errs = append(errs, fmt.Sprintf("detection.emptyresultpolicy must be %q or %q, got %q", EmptyResultFail, EmptyResultSucceed, d.EmptyResultPolicy))
	}
	return errs
}

func validateQueueSettings(s *Settings) []string {
	var errs []string
	q := s.Queue
	if q.Size < 1 {
		errs = append(errs, "queue.size must be at least 1")
	}
	if q.MaxRetries < 0 {
		errs = append(errs, "queue.maxretries cannot be negative")
	}
	if q.Multiplier < 1 {
		errs = append(errs, fmt.Sprintf("queue.multiplier must be at least 1, got %g", q.Multiplier))
	}
	return errs
}
