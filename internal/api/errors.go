package api

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/logger"
)

// Codes set by the HTTP layer itself.
const (
	CodeInternalError  = "internal_error"
	CodeInvalidRequest = "invalid_request"
	CodeRouteNotFound  = "not_found"
	CodeHTTPError      = "http_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// statusOverrides pins codes whose category alone would pick the wrong status.
var statusOverrides = map[string]int{
	"unknown_tile_label": http.StatusInternalServerError,
	"s3_error":           http.StatusInternalServerError,
}

// categoryStatus maps error categories to HTTP statuses. Unlisted
// categories are server errors.
var categoryStatus = map[errors.ErrorCategory]int{
	errors.CategoryValidation:     http.StatusBadRequest,
	errors.CategoryState:          http.StatusBadRequest,
	errors.CategoryAuthentication: http.StatusUnauthorized,
	errors.CategoryOwnership:      http.StatusForbidden,
	errors.CategoryNotFound:       http.StatusNotFound,
	errors.CategoryConflict:       http.StatusConflict,
	errors.CategoryIntegration:    http.StatusBadGateway,
	errors.CategoryNetwork:        http.StatusBadGateway,
}

// StatusFor returns the HTTP status and stable code for err.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			return he.Code, CodeRouteNotFound
		case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
			return he.Code, CodeInvalidRequest
		}
		return he.Code, CodeHTTPError
	}

	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError, CodeInternalError
	}

	status, ok := statusOverrides[ee.Code]
	if !ok {
		status, ok = categoryStatus[ee.Category]
		if !ok {
			status = http.StatusInternalServerError
		}
	}

	code := ee.Code
	if code == "" {
		if status == http.StatusInternalServerError {
			code = CodeInternalError
		} else {
			code = string(ee.Category)
		}
	}
	return status, code
}

// errorMessage hides the details of uncoded server errors.
func errorMessage(err error, status int, code string) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprint(he.Message)
	}
	if code == CodeInternalError {
		return http.StatusText(status)
	}
	return err.Error()
}

// handleError is the echo HTTPErrorHandler of the server.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code := StatusFor(err)
	correlationID := c.Response().Header().Get(echo.HeaderXRequestID)
	if correlationID == "" {
		correlationID = generateCorrelationID()
	}

	log := s.log.WithContext(c.Request().Context()).With(
		logger.String("method", c.Request().Method),
		logger.String("path", c.Path()),
		logger.Int("status", status),
		logger.String("code", code),
		logger.String("correlation_id", correlationID))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Error(err))
	} else {
		log.Debug("request rejected", logger.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{
			Code:          code,
			Message:       errorMessage(err, status, code),
			CorrelationID: correlationID,
		})
	}
	if err != nil {
		log.Warn("failed to write error response", logger.Error(err))
	}
}

// invalidRequest reports a malformed request body or parameter.
func invalidRequest(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Code(CodeInvalidRequest).
		Build()
}

// generateCorrelationID returns a random 8 character id for responses
// written before a request id was assigned.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
