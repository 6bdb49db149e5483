package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/observability/metrics"
)

// NewHTTPMetrics records request counts, latency and response size per
// route template. Errors with a stable code are counted by code.
func NewHTTPMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is known.
				c.Error(err)
			}

			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(method, path, c.Response().Status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)
			if code := errors.CodeOf(err); code != "" {
				m.RecordHTTPRequestError(method, path, code)
			}
			return nil
		}
	}
}
