package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
)

func loadSettings(t *testing.T, extra string) *conf.Settings {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	content := fmt.Sprintf(`
database:
  sqlite:
    path: %s
inference:
  endpoint: http://127.0.0.1:1
logging:
  console:
    enabled: false
%s`, filepath.Join(dir, "handscan.db"), extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := conf.Load(path)
	require.NoError(t, err)
	return settings
}

func TestNewWiresServices(t *testing.T) {
	settings := loadSettings(t, "")

	a, err := New(settings, buildinfo.NewContext("1.2.3", "2026-10-01"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.DB.Migrate(context.Background()))
	require.NoError(t, a.Ping(context.Background()))

	assert.NotNil(t, a.Identity)
	assert.NotNil(t, a.Uploads)
	assert.NotNil(t, a.Detections)
	assert.NotNil(t, a.Corrections)
	assert.Equal(t, "memory", a.Storage.Provider())

	w, err := a.NewWorker()
	require.NoError(t, err)
	assert.NotNil(t, w)

	_, err = a.NewWorker()
	require.Error(t, err)

	server, err := a.NewServer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
}

func TestNewRequiresInferenceEndpoint(t *testing.T) {
	settings := loadSettings(t, "")
	settings.Inference.Endpoint = ""

	_, err := New(settings, buildinfo.NewContext("dev", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference")
}
