// Package privacy removes credentials and signed URL parameters from text
// that leaves the process, such as telemetry events and error messages.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces removed query strings and credentials.
const Redacted = "REDACTED"

var urlPattern = regexp.MustCompile(`\bhttps?://[^\s"']+`)

// ScrubMessage rewrites every URL in message with ScrubURL.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, ScrubURL)
}

// ScrubURL drops user info and the query string from rawURL. Presigned
// storage URLs carry their signature in the query, so the object path is
// kept for debugging while the grant itself is removed. Unparseable input
// is replaced by a short hash.
func ScrubURL(rawURL string) string {
	// Trailing punctuation belongs to the surrounding sentence.
	trimmed := strings.TrimRight(rawURL, ".,;:)")
	suffix := rawURL[len(trimmed):]

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		hash := sha256.Sum256([]byte(trimmed))
		return fmt.Sprintf("url-%x", hash[:6]) + suffix
	}

	if u.User != nil {
		u.User = url.User(Redacted)
	}
	if u.RawQuery != "" {
		u.RawQuery = Redacted
	}
	u.Fragment = ""
	return u.String() + suffix
}

// SanitizedError reports a scrubbed message while keeping the original
// error in the chain for errors.Is and errors.As.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string { return e.sanitizedMsg }

func (e *SanitizedError) Unwrap() error { return e.original }

// WrapError scrubs the message of err. It returns nil for a nil error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{original: err, sanitizedMsg: ScrubMessage(err.Error())}
}
