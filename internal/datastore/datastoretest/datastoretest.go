// Package datastoretest provides a migrated in-memory database for tests.
package datastoretest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/logger"
)

// NewManager opens a fresh in-memory sqlite database and migrates it.
// The pool is limited to one connection so every query sees the same database.
func NewManager(t testing.TB) *datastore.Manager {
	t.Helper()

	settings := &conf.DatabaseSettings{Driver: datastore.DriverSQLite, MaxOpenConns: 1}
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)

	m, err := datastore.OpenDialector(sqlite.Open(datastore.SQLiteDSN(":memory:")), settings, log)
	require.NoError(t, err)
	require.NoError(t, m.Migrate(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// NewStore returns the repositories of a fresh migrated database.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	return NewManager(t).Store()
}

// SeedClient inserts a client.
func SeedClient(t testing.TB, store *repository.Store, installID string) *entities.Client {
	t.Helper()
	client, _, err := store.Clients.GetOrCreate(context.Background(), installID, "")
	require.NoError(t, err)
	return client
}

// SeedAsset inserts a presigned upload session for installID and an asset
// attached to it. active controls whether the asset is already confirmed.
func SeedAsset(t testing.TB, store *repository.Store, installID string, active bool) *entities.Asset {
	t.Helper()
	ctx := context.Background()

	session := &entities.UploadSession{
		ClientID: installID,
		Status:   entities.UploadSessionPresigned,
		Purpose:  entities.PurposeHandPhoto,
	}
	require.NoError(t, store.Uploads.CreateSession(ctx, session))

	id := uuid.New()
	asset := &entities.Asset{
		ID:              id,
		UploadSessionID: &session.ID,
		StorageProvider: "memory",
		StorageKey:      "uploads/" + installID + "/hand_photo/" + id.String() + ".jpg",
		MimeType:        "image/jpeg",
		IsActive:        active,
	}
	require.NoError(t, store.Uploads.CreateAsset(ctx, asset))

	loaded, err := store.Uploads.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	return loaded
}

// SeedHand inserts a hand owned by installID with a hand_photo ref to asset.
func SeedHand(t testing.TB, store *repository.Store, installID string, asset *entities.Asset) (*entities.Hand, *entities.AssetRef) {
	t.Helper()
	ctx := context.Background()

	hand := &entities.Hand{ClientID: installID, Source: entities.SourceCamera}
	require.NoError(t, store.Hands.Create(ctx, hand))

	captured := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ref, err := store.Hands.AttachAsset(ctx, asset, entities.OwnerHand, hand.ID, entities.RoleHandPhoto, &captured)
	require.NoError(t, err)
	return hand, ref
}
