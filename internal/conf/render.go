package conf

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const maskedValue = "********"

// RenderYAML returns the effective settings as YAML with secrets masked.
func RenderYAML(settings *Settings) ([]byte, error) {
	redacted := *settings
	redacted.Database.MySQL.Password = mask(redacted.Database.MySQL.Password)
	redacted.Database.Postgres.Password = mask(redacted.Database.Postgres.Password)
	redacted.Storage.AccessKey = mask(redacted.Storage.AccessKey)
	redacted.Storage.SecretKey = mask(redacted.Storage.SecretKey)
	redacted.Inference.Token = mask(redacted.Inference.Token)
	redacted.Sentry.DSN = mask(redacted.Sentry.DSN)

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings: %w", err)
	}
	return out, nil
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return maskedValue
}
