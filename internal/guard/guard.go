// Package guard holds the ownership and existence checks shared by the
// upload, detection and correction services. Every failure is an
// *errors.EnhancedError with a stable code.
package guard

import (
	"github.com/google/uuid"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/errors"
)

// Stable error codes.
const (
	CodeAssetNotFound       = "asset_not_found"
	CodeAssetOwnership      = "asset_ownership_error"
	CodeAssetNotActive      = "asset_not_active"
	CodeClientNotFound      = "client_not_found"
	CodeHandNotFound        = "hand_not_found"
	CodeHandOwnership       = "hand_ownership_error"
	CodeDetectionNotFound   = "detection_not_found"
	CodeDetectionOwnership  = "detection_ownership_error"
	CodeCorrectionNotFound  = "correction_not_found"
	CodeCorrectionOwnership = "correction_ownership_error"
)

const component = "guard"

// AssetOwnedBy fails when the asset has no upload session or the session
// belongs to another client.
func AssetOwnedBy(asset *entities.Asset, installID string) error {
	if asset.OwnerInstallID() == "" || asset.OwnerInstallID() != installID {
		return ownership(CodeAssetOwnership, "asset %s does not belong to client %s", asset.ID, installID)
	}
	return nil
}

// AssetActive fails until the upload has been confirmed.
func AssetActive(asset *entities.Asset) error {
	if !asset.IsActive {
		return errors.Newf("asset %s is not active, complete the upload first", asset.ID).
			Component(component).
			Category(errors.CategoryValidation).
			Code(CodeAssetNotActive).
			Context("asset_id", asset.ID.String()).
			Build()
	}
	return nil
}

// HandOwnedBy fails when the hand belongs to another client.
func HandOwnedBy(hand *entities.Hand, installID string) error {
	if hand == nil || hand.ClientID != installID {
		var id uuid.UUID
		if hand != nil {
			id = hand.ID
		}
		return ownership(CodeHandOwnership, "hand %s does not belong to client %s", id, installID)
	}
	return nil
}

// DetectionOwnedBy checks ownership through the detection's hand, which must
// be preloaded.
func DetectionOwnedBy(detection *entities.HandDetection, installID string) error {
	if detection.Hand == nil || detection.Hand.ClientID != installID {
		return ownership(CodeDetectionOwnership, "detection %s does not belong to client %s", detection.ID, installID)
	}
	return nil
}

// CorrectionOwnedBy checks ownership through the correction's hand, which
// must be preloaded.
func CorrectionOwnedBy(correction *entities.HandCorrection, installID string) error {
	if correction.Hand == nil || correction.Hand.ClientID != installID {
		return ownership(CodeCorrectionOwnership, "correction %s does not belong to client %s", correction.ID, installID)
	}
	return nil
}

// NotFound builds a not-found error with the given code.
func NotFound(code, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(component).
		Category(errors.CategoryNotFound).
		Code(code).
		Build()
}

func ownership(code, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(component).
		Category(errors.CategoryOwnership).
		Code(code).
		Build()
}
