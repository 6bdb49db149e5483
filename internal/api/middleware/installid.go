package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/handscan/handscan/internal/errors"
)

// HeaderInstallID identifies the calling client.
const HeaderInstallID = "X-Install-Id"

// CodeMissingInstallID is returned when the header is absent.
const CodeMissingInstallID = "missing_install_id"

const installIDKey = "install_id"

// Toucher records that a client made a request.
type Toucher interface {
	Touch(ctx context.Context, installID string)
}

// RequireInstallID rejects requests without an X-Install-Id header and
// stores the id for InstallID. When toucher is set every accepted request
// refreshes the client's last seen time.
func RequireInstallID(toucher Toucher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			installID := strings.TrimSpace(c.Request().Header.Get(HeaderInstallID))
			if installID == "" {
				return errors.Newf("the %s header is required", HeaderInstallID).
					Component("api").
					Category(errors.CategoryAuthentication).
					Code(CodeMissingInstallID).
					Build()
			}

			c.Set(installIDKey, installID)
			if toucher != nil {
				toucher.Touch(c.Request().Context(), installID)
			}
			return next(c)
		}
	}
}

// InstallID returns the id stored by RequireInstallID, or "".
func InstallID(c echo.Context) string {
	id, _ := c.Get(installIDKey).(string)
	return id
}
