package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/datastore/datastoretest"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
)

func TestClientGetOrCreate(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	client, created, err := store.Clients.GetOrCreate(ctx, "install-1", "pixel")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "pixel", client.Label)

	again, created, err := store.Clients.GetOrCreate(ctx, "install-1", "ignored")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pixel", again.Label)

	again.Label = "tablet"
	require.NoError(t, store.Clients.Save(ctx, again))
	loaded, err := store.Clients.GetByInstallID(ctx, "install-1")
	require.NoError(t, err)
	assert.Equal(t, "tablet", loaded.Label)
}

func TestClientDelete(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	require.NoError(t, store.Clients.Delete(ctx, "install-1"))

	_, err := store.Clients.GetByInstallID(ctx, "install-1")
	require.ErrorIs(t, err, repository.ErrClientNotFound)
	require.ErrorIs(t, store.Clients.Delete(ctx, "install-1"), repository.ErrClientNotFound)
}

func TestClientDeleteCascadesToHands(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", true)
	hand, _ := datastoretest.SeedHand(t, store, "install-1", asset)

	require.NoError(t, store.Clients.Delete(ctx, "install-1"))

	_, err := store.Hands.GetByID(ctx, hand.ID)
	require.ErrorIs(t, err, repository.ErrHandNotFound)
}

func TestUploadSessionTransition(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", false)
	require.NotNil(t, asset.UploadSessionID)
	assert.Equal(t, "install-1", asset.OwnerInstallID())

	sessionID := *asset.UploadSessionID
	require.NoError(t, store.Uploads.TransitionSession(ctx, sessionID, entities.UploadSessionPresigned, entities.UploadSessionCompleted))

	err := store.Uploads.TransitionSession(ctx, sessionID, entities.UploadSessionPresigned, entities.UploadSessionCompleted)
	require.ErrorIs(t, err, repository.ErrStaleTransition)

	session, err := store.Uploads.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, entities.UploadSessionCompleted, session.Status)
}

func TestActivateAsset(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", false)
	assert.False(t, asset.IsActive)

	require.NoError(t, store.Uploads.ActivateAsset(ctx, asset.ID, 2048, "etag-1"))
	require.NoError(t, store.Uploads.SetAssetDimensions(ctx, asset.ID, 640, 480))

	loaded, err := store.Uploads.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, int64(2048), loaded.ByteSize)
	assert.Equal(t, "etag-1", loaded.Checksum)
	require.NotNil(t, loaded.Width)
	assert.Equal(t, 640, *loaded.Width)

	require.ErrorIs(t, store.Uploads.ActivateAsset(ctx, uuid.New(), 1, ""), repository.ErrAssetNotFound)
}

func TestDuplicateStorageKeyRejected(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", false)

	dup := &entities.Asset{
		StorageProvider: "memory",
		StorageKey:      asset.StorageKey,
		MimeType:        "image/png",
	}
	require.ErrorIs(t, store.Uploads.CreateAsset(ctx, dup), repository.ErrDuplicateKey)
}

func TestAttachAssetOrderingAndCapturedAt(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", true)
	hand, first := datastoretest.SeedHand(t, store, "install-1", asset)
	assert.Equal(t, 0, first.Ordering)

	exif := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset.ExifCapturedAt = &exif
	second, err := store.Hands.AttachAsset(ctx, asset, entities.OwnerHand, hand.ID, entities.RoleHandPhoto, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Ordering)
	assert.True(t, second.CapturedAt.Equal(exif))

	asset.ExifCapturedAt = nil
	before := time.Now()
	third, err := store.Hands.AttachAsset(ctx, asset, entities.OwnerHand, hand.ID, entities.RoleHandCropped, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Ordering)
	assert.False(t, third.CapturedAt.Before(before))

	ref, err := store.Hands.GetAssetRef(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, ref.Asset)
	assert.Equal(t, asset.ID, ref.Asset.ID)
}

func TestLatestAssetRef(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", true)

	_, err := store.Hands.LatestAssetRef(ctx, asset.ID, entities.RoleHandPhoto)
	require.ErrorIs(t, err, repository.ErrAssetRefNotFound)

	hand, ref := datastoretest.SeedHand(t, store, "install-1", asset)
	latest, err := store.Hands.LatestAssetRef(ctx, asset.ID, entities.RoleHandPhoto)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, latest.ID)
	assert.Equal(t, hand.ID, latest.OwnerID)
}

func newDetection(t *testing.T, store *repository.Store) (*entities.HandDetection, *entities.Asset) {
	t.Helper()
	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", true)
	hand, ref := datastoretest.SeedHand(t, store, "install-1", asset)

	key := entities.LiveKeyFor(asset.ID, "v0")
	detection := &entities.HandDetection{
		HandID:       hand.ID,
		AssetRefID:   ref.ID,
		ModelName:    "tile_detector",
		ModelVersion: "v0",
		LiveKey:      &key,
	}
	require.NoError(t, store.Detections.Create(context.Background(), detection))
	return detection, asset
}

func TestDetectionLiveKeyIsUnique(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)
	assert.Equal(t, entities.DetectionPending, detection.Status)

	dup := &entities.HandDetection{
		HandID:       detection.HandID,
		AssetRefID:   detection.AssetRefID,
		ModelName:    "tile_detector",
		ModelVersion: "v0",
		LiveKey:      detection.LiveKey,
	}
	require.ErrorIs(t, store.Detections.Create(ctx, dup), repository.ErrDuplicateKey)

	live, err := store.Detections.FindLive(ctx, *detection.LiveKey)
	require.NoError(t, err)
	assert.Equal(t, detection.ID, live.ID)
}

func TestDetectionFailReleasesLiveKey(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)
	require.NoError(t, store.Detections.Fail(ctx, detection.ID, repository.Failure{
		Code:    "modal_service_error",
		Message: "boom",
	}))

	failed, err := store.Detections.GetByID(ctx, detection.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DetectionFailed, failed.Status)
	assert.Nil(t, failed.LiveKey)
	assert.Equal(t, "modal_service_error", failed.ErrorCode)

	_, err = store.Detections.FindLive(ctx, *detection.LiveKey)
	require.ErrorIs(t, err, repository.ErrDetectionNotFound)

	retry := &entities.HandDetection{
		HandID:       detection.HandID,
		AssetRefID:   detection.AssetRefID,
		ModelName:    "tile_detector",
		ModelVersion: "v0",
		LiveKey:      detection.LiveKey,
	}
	require.NoError(t, store.Detections.Create(ctx, retry))

	// Terminal runs cannot move again.
	require.ErrorIs(t, store.Detections.Fail(ctx, detection.ID, repository.Failure{Code: "x"}), repository.ErrStaleTransition)
	require.ErrorIs(t, store.Detections.MarkRunning(ctx, detection.ID), repository.ErrStaleTransition)
}

func TestDetectionDispatchAndComplete(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)

	// A run must be running before it can succeed.
	err := store.Detections.Complete(ctx, detection.ID, repository.Completion{ConfidenceOverall: 0.5})
	require.ErrorIs(t, err, repository.ErrStaleTransition)

	require.NoError(t, store.Detections.MarkDispatched(ctx, detection.ID, "fc-123"))
	require.ErrorIs(t, store.Detections.MarkDispatched(ctx, detection.ID, "fc-456"), repository.ErrStaleTransition)

	ms := int64(87)
	require.NoError(t, store.Detections.Complete(ctx, detection.ID, repository.Completion{
		Tiles: []entities.DetectionTile{
			{TileCode: "1m", X1: 1, Y1: 2, X2: 30, Y2: 40, Confidence: 0.9},
			{TileCode: "E", X1: 40, Y1: 2, X2: 70, Y2: 40, Confidence: 0.8},
		},
		ConfidenceOverall: 0.85,
		InferenceTimeMs:   &ms,
		RawResult:         []byte(`{"detections":[]}`),
	}))

	done, err := store.Detections.GetByID(ctx, detection.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DetectionSucceeded, done.Status)
	require.NotNil(t, done.CallID)
	assert.Equal(t, "fc-123", *done.CallID)
	require.NotNil(t, done.ConfidenceOverall)
	assert.InDelta(t, 0.85, *done.ConfidenceOverall, 1e-9)
	require.NotNil(t, done.InferenceTimeMs)
	assert.Equal(t, int64(87), *done.InferenceTimeMs)
	require.Len(t, done.Tiles, 2)
	assert.Equal(t, "1m", done.Tiles[0].TileCode)
	assert.Equal(t, "E", done.Tiles[1].TileCode)
	require.NotNil(t, done.Hand)
	assert.Equal(t, "install-1", done.Hand.ClientID)

	err = store.Detections.Complete(ctx, detection.ID, repository.Completion{ConfidenceOverall: 0.1})
	require.ErrorIs(t, err, repository.ErrStaleTransition)
}

func TestDetectionLatestForHand(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)

	latest, err := store.Detections.LatestForHand(ctx, detection.HandID, "v0")
	require.NoError(t, err)
	assert.Equal(t, detection.ID, latest.ID)

	_, err = store.Detections.LatestForHand(ctx, detection.HandID, "v1")
	require.ErrorIs(t, err, repository.ErrDetectionNotFound)
}

func TestDetectionListStale(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)
	open := []entities.DetectionStatus{entities.DetectionPending, entities.DetectionRunning}

	stale, err := store.Detections.ListStale(ctx, open, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, detection.ID, stale[0].ID)

	stale, err = store.Detections.ListStale(ctx, open, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, store.Detections.Fail(ctx, detection.ID, repository.Failure{Code: "x"}))
	stale, err = store.Detections.ListStale(ctx, open, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCorrectionCreateAndList(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	detection, _ := newDetection(t, store)

	older := &entities.HandCorrection{
		HandID:    detection.HandID,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		Tiles: []entities.HandTile{
			{TileCode: "2p", SortOrder: 1},
			{TileCode: "1p", SortOrder: 0},
		},
	}
	require.NoError(t, store.Corrections.Create(ctx, older))

	newer := &entities.HandCorrection{
		HandID:          detection.HandID,
		HandDetectionID: &detection.ID,
		Tiles:           []entities.HandTile{{TileCode: "C", SortOrder: 0}},
	}
	require.NoError(t, store.Corrections.Create(ctx, newer))
	require.NoError(t, store.Hands.SetActiveCorrection(ctx, detection.HandID, newer.ID))

	loaded, err := store.Corrections.GetByID(ctx, older.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Tiles, 2)
	assert.Equal(t, "1p", loaded.Tiles[0].TileCode)
	assert.Equal(t, "2p", loaded.Tiles[1].TileCode)
	assert.False(t, loaded.IsActiveFor(loaded.Hand))

	list, err := store.Corrections.ListByClient(ctx, "install-1", nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.True(t, list[0].IsActiveFor(list[0].Hand))

	other := uuid.New()
	list, err = store.Corrections.ListByClient(ctx, "install-1", &other)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = store.Corrections.ListByClient(ctx, "someone-else", nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = store.Corrections.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrCorrectionNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	store := datastoretest.NewStore(t)
	ctx := context.Background()

	datastoretest.SeedClient(t, store, "install-1")
	var handID uuid.UUID
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		hand := &entities.Hand{ClientID: "install-1"}
		require.NoError(t, tx.Hands.Create(ctx, hand))
		handID = hand.ID
		return repository.ErrStaleTransition
	})
	require.ErrorIs(t, err, repository.ErrStaleTransition)

	_, err = store.Hands.GetByID(ctx, handID)
	require.ErrorIs(t, err, repository.ErrHandNotFound)
}
