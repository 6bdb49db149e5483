package repository

import "github.com/handscan/handscan/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrClientNotFound indicates no client exists for the install id.
	ErrClientNotFound = errors.NewStd("client not found")

	// ErrUploadSessionNotFound indicates the upload session does not exist.
	ErrUploadSessionNotFound = errors.NewStd("upload session not found")

	// ErrAssetNotFound indicates the asset does not exist.
	ErrAssetNotFound = errors.NewStd("asset not found")

	// ErrAssetRefNotFound indicates no matching asset reference exists.
	ErrAssetRefNotFound = errors.NewStd("asset reference not found")

	// ErrHandNotFound indicates the hand does not exist.
	ErrHandNotFound = errors.NewStd("hand not found")

	// ErrDetectionNotFound indicates the detection does not exist.
	ErrDetectionNotFound = errors.NewStd("detection not found")

	// ErrCorrectionNotFound indicates the correction does not exist.
	ErrCorrectionNotFound = errors.NewStd("correction not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrStaleTransition indicates a conditional state update matched no row.
	ErrStaleTransition = errors.NewStd("stale state transition")
)
