package identity_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/datastore/datastoretest"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/guard"
	"github.com/handscan/handscan/internal/identity"
	"github.com/handscan/handscan/internal/logger"
)

func newService(t *testing.T) *identity.Service {
	t.Helper()
	store := datastoretest.NewStore(t)
	return identity.NewService(store.Clients, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
}

func TestIdentifyCreatesThenReuses(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	client, created, err := svc.Identify(ctx, "install-1", "Pixel")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "install-1", client.InstallID)
	assert.Equal(t, "Pixel", client.Label)
	firstSeen := client.LastSeenAt

	time.Sleep(5 * time.Millisecond)
	client, created, err = svc.Identify(ctx, "install-1", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Pixel", client.Label, "an empty label keeps the stored one")
	assert.True(t, client.LastSeenAt.After(firstSeen))

	client, _, err = svc.Identify(ctx, "install-1", "iPhone")
	require.NoError(t, err)
	assert.Equal(t, "iPhone", client.Label)

	stored, err := svc.Get(ctx, "install-1")
	require.NoError(t, err)
	assert.Equal(t, "iPhone", stored.Label)
}

func TestIdentifyValidation(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name      string
		installID string
		label     string
	}{
		{"empty install id", "  ", ""},
		{"long install id", strings.Repeat("a", 65), ""},
		{"long label", "install-1", strings.Repeat("b", 121)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Identify(context.Background(), tt.installID, tt.label)
			require.Error(t, err)
			assert.Equal(t, identity.CodeInvalidClient, errors.CodeOf(err))
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestGetAndDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "install-1")
	assert.Equal(t, guard.CodeClientNotFound, errors.CodeOf(err))
	assert.Equal(t, "Client with install_id 'install-1' not found", err.Error())

	_, _, err = svc.Identify(ctx, "install-1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "install-1"))
	_, err = svc.Get(ctx, "install-1")
	assert.True(t, errors.IsNotFound(err))

	err = svc.Delete(ctx, "install-1")
	assert.Equal(t, guard.CodeClientNotFound, errors.CodeOf(err))
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	client, _, err := svc.Identify(ctx, "install-1", "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	svc.Touch(ctx, "install-1")
	svc.Touch(ctx, "unknown")

	stored, err := svc.Get(ctx, "install-1")
	require.NoError(t, err)
	assert.True(t, stored.LastSeenAt.After(client.LastSeenAt))
}
