package guard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/errors"
)

func assetOwnedBy(installID string) *entities.Asset {
	sessionID := uuid.New()
	return &entities.Asset{
		ID:              uuid.New(),
		UploadSessionID: &sessionID,
		UploadSession:   &entities.UploadSession{ID: sessionID, ClientID: installID},
	}
}

func TestAssetOwnedBy(t *testing.T) {
	t.Parallel()

	asset := assetOwnedBy("install-1")
	require.NoError(t, AssetOwnedBy(asset, "install-1"))

	err := AssetOwnedBy(asset, "install-2")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, CodeAssetOwnership))
	assert.True(t, errors.IsCategory(err, errors.CategoryOwnership))

	orphan := &entities.Asset{ID: uuid.New()}
	assert.True(t, errors.HasCode(AssetOwnedBy(orphan, "install-1"), CodeAssetOwnership))
	assert.True(t, errors.HasCode(AssetOwnedBy(orphan, ""), CodeAssetOwnership), "an empty install id never owns a session-less asset")
}

func TestAssetActive(t *testing.T) {
	t.Parallel()

	asset := assetOwnedBy("install-1")
	err := AssetActive(asset)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, CodeAssetNotActive))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	asset.IsActive = true
	assert.NoError(t, AssetActive(asset))
}

func TestHandAndDetectionOwnership(t *testing.T) {
	t.Parallel()

	hand := &entities.Hand{ID: uuid.New(), ClientID: "install-1"}
	require.NoError(t, HandOwnedBy(hand, "install-1"))
	assert.True(t, errors.HasCode(HandOwnedBy(hand, "install-2"), CodeHandOwnership))
	assert.True(t, errors.HasCode(HandOwnedBy(nil, "install-1"), CodeHandOwnership))

	detection := &entities.HandDetection{ID: uuid.New(), Hand: hand}
	require.NoError(t, DetectionOwnedBy(detection, "install-1"))
	assert.True(t, errors.HasCode(DetectionOwnedBy(detection, "install-2"), CodeDetectionOwnership))

	detection.Hand = nil
	assert.True(t, errors.HasCode(DetectionOwnedBy(detection, "install-1"), CodeDetectionOwnership))

	correction := &entities.HandCorrection{ID: uuid.New(), Hand: hand}
	require.NoError(t, CorrectionOwnedBy(correction, "install-1"))
	assert.True(t, errors.HasCode(CorrectionOwnedBy(correction, "install-2"), CodeCorrectionOwnership))
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	err := NotFound(CodeDetectionNotFound, "detection %s not found", id)
	assert.Equal(t, "detection "+id.String()+" not found", err.Error())
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, CodeDetectionNotFound, errors.CodeOf(err))
}
