//go:build integration

package datastore_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/driver/mysql"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore"
	"github.com/handscan/handscan/internal/datastore/datastoretest"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/logger"
)

func TestMySQLLiveKeyConstraint(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("handscan"),
		tcmysql.WithUsername("handscan"),
		tcmysql.WithPassword("handscan"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=UTC")
	require.NoError(t, err)

	settings := &conf.DatabaseSettings{Driver: datastore.DriverMySQL}
	m, err := datastore.OpenDialector(mysql.Open(dsn), settings, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Ping(ctx))

	store := m.Store()
	datastoretest.SeedClient(t, store, "install-1")
	asset := datastoretest.SeedAsset(t, store, "install-1", true)
	hand, ref := datastoretest.SeedHand(t, store, "install-1", asset)

	key := entities.LiveKeyFor(asset.ID, "v0")
	first := &entities.HandDetection{HandID: hand.ID, AssetRefID: ref.ID, ModelName: "tile_detector", ModelVersion: "v0", LiveKey: &key}
	require.NoError(t, store.Detections.Create(ctx, first))

	second := &entities.HandDetection{HandID: hand.ID, AssetRefID: ref.ID, ModelName: "tile_detector", ModelVersion: "v0", LiveKey: &key}
	require.ErrorIs(t, store.Detections.Create(ctx, second), repository.ErrDuplicateKey)

	require.NoError(t, store.Detections.Fail(ctx, first.ID, repository.Failure{Code: "modal_service_error", Message: "down"}))
	require.NoError(t, store.Detections.Create(ctx, second))

	loaded, err := store.Detections.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DetectionPending, loaded.Status)
}
