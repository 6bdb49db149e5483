package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/api"
	mw "github.com/handscan/handscan/internal/api/middleware"
	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/correction"
	"github.com/handscan/handscan/internal/datastore/datastoretest"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/detection"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/identity"
	"github.com/handscan/handscan/internal/inference"
	"github.com/handscan/handscan/internal/inference/inferencetest"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability"
	"github.com/handscan/handscan/internal/storage"
	"github.com/handscan/handscan/internal/upload"
)

const (
	alice = "install-alice"
	bob   = "install-bob"
)

type fixture struct {
	server  *api.Server
	store   *repository.Store
	storage *storage.Memory
	fake    *inferencetest.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	store := datastoretest.NewStore(t)
	st := storage.NewMemory("hands")
	fake := inferencetest.New()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	detections := detection.NewService(store, st, fake,
		detection.Config{
			ModelName:           conf.DefaultModelName,
			ModelVersion:        "v0",
			ConfidenceThreshold: 0.5,
			NMSIoUThreshold:     0.5,
			EmptyResultPolicy:   conf.EmptyResultFail,
			ReadURLTTL:          time.Hour,
		},
		detection.WithRecorder(m.Recorder()),
		detection.WithLogger(log))

	cfg := api.DefaultConfig()
	cfg.MetricsPath = "/metrics"

	server, err := api.New(cfg,
		api.WithLogger(log),
		api.WithIdentity(identity.NewService(store.Clients, log)),
		api.WithUploads(upload.NewService(store, st, upload.Config{}, m.Recorder(), log)),
		api.WithDetections(detections),
		api.WithCorrections(correction.NewService(store, m.Recorder(), log)),
		api.WithMetrics(m))
	require.NoError(t, err)

	return &fixture{server: server, store: store, storage: st, fake: fake}
}

// do sends a request and returns the recorded response. body is encoded
// as JSON when not nil.
func (f *fixture) do(t *testing.T, method, path, installID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if installID != "" {
		req.Header.Set(mw.HeaderInstallID, installID)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) api.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, code, resp.Code)
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.CorrelationID)
	return resp
}

func (f *fixture) identify(t *testing.T, installID string) {
	t.Helper()
	rec := f.do(t, http.MethodPut, "/api/v1/client", "", map[string]string{"install_id": installID})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
}

// uploadAsset runs presign, upload and complete and returns the asset.
func (f *fixture) uploadAsset(t *testing.T, installID string) api.AssetResponse {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/asset/upload/presign", installID,
		map[string]string{"content_type": "image/jpeg"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	presigned := decode[api.PresignResponse](t, rec)

	f.storage.Put(presigned.StorageKey, []byte("jpeg"), "image/jpeg")

	rec = f.do(t, http.MethodPost, "/api/v1/asset/"+presigned.ID.String()+"/complete", installID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.AssetResponse](t, rec)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "unknown", body["version"])
}

func TestMissingInstallID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/client/me", "", nil)
	resp := requireError(t, rec, http.StatusUnauthorized, mw.CodeMissingInstallID)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.CorrelationID)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/nope", alice, nil)
	requireError(t, rec, http.StatusNotFound, api.CodeRouteNotFound)
}

func TestClientLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/client", "", map[string]string{"install_id": alice, "label": "Pixel"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[api.ClientResponse](t, rec)
	assert.Equal(t, alice, client.InstallID)
	assert.Equal(t, "Pixel", client.Label)

	// The header is used when the body carries no install id.
	rec = f.do(t, http.MethodPut, "/api/v1/client", alice, map[string]string{"label": "Pixel 9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/client/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pixel 9", decode[api.ClientResponse](t, rec).Label)

	rec = f.do(t, http.MethodPut, "/api/v1/client", "", map[string]string{})
	requireError(t, rec, http.StatusBadRequest, identity.CodeInvalidClient)

	rec = f.do(t, http.MethodDelete, "/api/v1/client/me", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/client/me", alice, nil)
	requireError(t, rec, http.StatusNotFound, "client_not_found")
}

func TestUploadFlow(t *testing.T) {
	f := newFixture(t)
	f.identify(t, alice)
	f.identify(t, bob)

	rec := f.do(t, http.MethodPost, "/api/v1/asset/upload/presign", alice,
		map[string]string{"content_type": "image/png", "purpose": "detect_test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	presigned := decode[api.PresignResponse](t, rec)
	assert.False(t, presigned.IsActive)
	assert.Contains(t, presigned.PresignedURL, "method=PUT")
	assert.Contains(t, presigned.StorageKey, "/detect_test/")
	require.NotNil(t, presigned.UploadSessionID)

	completePath := "/api/v1/asset/" + presigned.ID.String() + "/complete"
	rec = f.do(t, http.MethodPost, completePath, alice, nil)
	requireError(t, rec, http.StatusBadRequest, upload.CodeUploadNotComplete)

	f.storage.Put(presigned.StorageKey, []byte("png bytes"), "image/png")
	rec = f.do(t, http.MethodPost, completePath, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	asset := decode[api.AssetResponse](t, rec)
	assert.True(t, asset.IsActive)
	assert.Equal(t, int64(len("png bytes")), asset.ByteSize)
	assert.NotEmpty(t, asset.Checksum)

	rec = f.do(t, http.MethodPost, completePath, alice, nil)
	requireError(t, rec, http.StatusBadRequest, upload.CodeInvalidSessionState)

	rec = f.do(t, http.MethodGet, "/api/v1/asset/"+presigned.ID.String(), alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/asset/"+presigned.ID.String(), bob, nil)
	requireError(t, rec, http.StatusNotFound, "asset_not_found")

	rec = f.do(t, http.MethodGet, "/api/v1/asset/not-a-uuid", alice, nil)
	requireError(t, rec, http.StatusBadRequest, api.CodeInvalidRequest)

	rec = f.do(t, http.MethodPost, "/api/v1/asset/upload/presign", alice,
		map[string]string{"content_type": "application/pdf"})
	requireError(t, rec, http.StatusBadRequest, upload.CodeInvalidFileType)
}

func TestDetectionFlow(t *testing.T) {
	f := newFixture(t)
	f.identify(t, alice)
	f.identify(t, bob)
	asset := f.uploadAsset(t, alice)

	f.fake.QueueResult("fc-1", &inference.Result{
		Detections: []inference.Box{
			{Label: "1B", Confidence: 0.91, X1: 0, Y1: 0, X2: 10, Y2: 10},
			{Label: "RD", Confidence: 0.82, X1: 20, Y1: 0, X2: 30, Y2: 10},
		},
	})

	body := map[string]string{"asset_id": asset.ID.String()}
	rec := f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	triggered := decode[api.TriggerResponse](t, rec)
	assert.Equal(t, "running", string(triggered.Status))
	assert.NotEqual(t, uuid.Nil, triggered.HandID)
	assert.NotEqual(t, uuid.Nil, triggered.AssetRefID)

	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, triggered.HandDetectionID, decode[api.TriggerResponse](t, rec).HandDetectionID)

	detailPath := "/api/v1/hand/detect/" + triggered.HandDetectionID.String()
	rec = f.do(t, http.MethodGet, detailPath, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[api.DetectionResponse](t, rec)
	assert.Equal(t, "running", string(detail.Status))
	assert.Empty(t, detail.Tiles)
	assert.Nil(t, detail.ConfidenceOverall)

	rec = f.do(t, http.MethodPost, detailPath+"/poll", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail = decode[api.DetectionResponse](t, rec)
	assert.Equal(t, "succeeded", string(detail.Status))
	require.Len(t, detail.Tiles, 2)
	assert.Equal(t, "1B", detail.Tiles[0].TileCode)
	assert.Equal(t, "RD", detail.Tiles[1].TileCode)
	require.NotNil(t, detail.ConfidenceOverall)
	assert.InDelta(t, 0.865, *detail.ConfidenceOverall, 0.0001)
	assert.Equal(t, conf.DefaultModelName, detail.ModelName)
	assert.Equal(t, "v0", detail.ModelVersion)

	rec = f.do(t, http.MethodGet, detailPath, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, detail, decode[api.DetectionResponse](t, rec))

	// The cached response is not served to other clients.
	rec = f.do(t, http.MethodGet, detailPath, bob, nil)
	requireError(t, rec, http.StatusForbidden, "detection_ownership_error")

	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", bob, body)
	requireError(t, rec, http.StatusForbidden, "asset_ownership_error")
}

func TestTriggerValidation(t *testing.T) {
	f := newFixture(t)
	f.identify(t, alice)

	rec := f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{})
	requireError(t, rec, http.StatusBadRequest, api.CodeInvalidRequest)

	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": "nope"})
	requireError(t, rec, http.StatusBadRequest, api.CodeInvalidRequest)

	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": uuid.NewString()})
	requireError(t, rec, http.StatusNotFound, "asset_not_found")

	inactive := datastoretest.SeedAsset(t, f.store, alice, false)
	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": inactive.ID.String()})
	requireError(t, rec, http.StatusBadRequest, "asset_not_active")

	asset := f.uploadAsset(t, alice)
	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice,
		map[string]string{"asset_id": asset.ID.String(), "source": "drawing"})
	requireError(t, rec, http.StatusBadRequest, detection.CodeInvalidSource)
}

func TestTriggerDispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.identify(t, alice)
	asset := f.uploadAsset(t, alice)

	f.fake.FailSubmit(errors.NewStd("connection refused"))
	rec := f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": asset.ID.String()})
	requireError(t, rec, http.StatusBadGateway, detection.CodeDispatchFailed)

	// The run stays pending and is reused once inference recovers.
	f.fake.FailSubmit(nil)
	rec = f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": asset.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", string(decode[api.TriggerResponse](t, rec).Status))
}

func TestCorrectionFlow(t *testing.T) {
	f := newFixture(t)
	f.identify(t, alice)
	f.identify(t, bob)
	asset := f.uploadAsset(t, alice)

	rec := f.do(t, http.MethodPost, "/api/v1/hand/detect", alice, map[string]string{"asset_id": asset.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	triggered := decode[api.TriggerResponse](t, rec)

	tiles := []map[string]any{
		{"tile_code": "3C", "sort_order": 1},
		{"tile_code": "1B", "sort_order": 0},
	}
	rec = f.do(t, http.MethodPost, "/api/v1/hand/correction", alice, map[string]any{
		"hand_id":      triggered.HandID,
		"detection_id": triggered.HandDetectionID,
		"tiles":        tiles,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.CorrectionResponse](t, rec)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.DetectionID)
	assert.Equal(t, triggered.HandDetectionID, *created.DetectionID)
	require.Len(t, created.Tiles, 2)
	assert.Equal(t, "1B", created.Tiles[0].TileCode)

	rec = f.do(t, http.MethodPost, "/api/v1/hand/correction", alice, map[string]any{
		"hand_id": triggered.HandID,
		"tiles":   []map[string]any{{"tile_code": "XX", "sort_order": 0}},
	})
	resp := requireError(t, rec, http.StatusBadRequest, correction.CodeInvalidTileData)
	assert.Equal(t, "Invalid tile code: XX", resp.Message)

	rec = f.do(t, http.MethodPost, "/api/v1/hand/correction", bob, map[string]any{
		"hand_id": triggered.HandID,
		"tiles":   tiles,
	})
	requireError(t, rec, http.StatusForbidden, "hand_ownership_error")

	rec = f.do(t, http.MethodGet, "/api/v1/hand/correction?hand_id="+triggered.HandID.String(), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]api.CorrectionResponse](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/hand/correction", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.CorrectionResponse](t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/hand/correction?hand_id=bad", alice, nil)
	requireError(t, rec, http.StatusBadRequest, api.CodeInvalidRequest)

	rec = f.do(t, http.MethodGet, "/api/v1/hand/correction/"+created.ID.String(), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[api.CorrectionResponse](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/v1/hand/correction/"+created.ID.String(), bob, nil)
	requireError(t, rec, http.StatusForbidden, "correction_ownership_error")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/v1/client/me", "", nil)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/client/me",status_code="401"} 1`)
	assert.Contains(t, body, `http_request_errors_total{error_code="missing_install_id",method="GET",path="/api/v1/client/me"} 1`)
}

func TestNewRequiresServices(t *testing.T) {
	_, err := api.New(api.DefaultConfig())
	assert.Error(t, err)
}
