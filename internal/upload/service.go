// Package upload manages presigned uploads and the assets they produce.
//
// A client asks for a presigned PUT URL, uploads the photo directly to
// object storage and then confirms the upload. Confirmation checks the
// object exists and activates the asset; only active assets can be used
// for detection.
package upload

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/guard"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability/metrics"
	"github.com/handscan/handscan/internal/storage"
)

// Stable error codes set by this package.
const (
	CodeInvalidFileType     = "invalid_file_type"
	CodeInvalidPurpose      = "invalid_purpose"
	CodeInvalidSessionState = "invalid_upload_session_state"
	CodeUploadNotComplete   = "upload_not_complete"
	CodeStorageError        = "s3_error"
)

const defaultUploadURLTTL = time.Hour

// allowedTypes maps accepted content types to the key extension.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/heic": "heic",
	"image/heif": "heif",
}

// AllowedContentTypes returns the accepted content types, sorted.
func AllowedContentTypes() []string {
	return slices.Sorted(maps.Keys(allowedTypes))
}

// Presigned is the result of Presign.
type Presigned struct {
	SessionID  uuid.UUID
	AssetID    uuid.UUID
	UploadURL  string
	StorageKey string
	ExpiresAt  time.Time
}

// Config controls URL lifetimes and post-upload inspection.
type Config struct {
	UploadURLTTL  time.Duration
	InspectImages bool
	TempDir       string
}

// ConfigFromSettings extracts the upload configuration.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		UploadURLTTL:  settings.Storage.UploadURLTTL,
		InspectImages: settings.Uploads.InspectImages,
		TempDir:       settings.Uploads.TempDir,
	}
}

// Service implements the upload lifecycle.
type Service struct {
	store    *repository.Store
	storage  storage.Storage
	cfg      Config
	recorder metrics.Recorder
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(store *repository.Store, st storage.Storage, cfg Config, recorder metrics.Recorder, log logger.Logger) *Service {
	if cfg.UploadURLTTL <= 0 {
		cfg.UploadURLTTL = defaultUploadURLTTL
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if log == nil {
		log = logger.Global().Module("upload")
	}
	return &Service{
		store:    store,
		storage:  st,
		cfg:      cfg,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Presign creates an upload session and an inactive asset and returns a
// URL the client uploads the file to. purpose defaults to hand_photo.
func (s *Service) Presign(ctx context.Context, installID, contentType string, purpose entities.UploadPurpose) (*Presigned, error) {
	start := time.Now()

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, s.rejected(metrics.OpUploadPresign, validationError(CodeInvalidFileType,
			"unsupported content type %q, allowed: %s", contentType, strings.Join(AllowedContentTypes(), ", ")))
	}
	if purpose == "" {
		purpose = entities.PurposeHandPhoto
	}
	if !purpose.IsValid() {
		return nil, s.rejected(metrics.OpUploadPresign, validationError(CodeInvalidPurpose,
			"unsupported upload purpose %q", purpose))
	}

	if _, err := s.store.Clients.GetByInstallID(ctx, installID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, guard.NotFound(guard.CodeClientNotFound, "client %s not found", installID)
		}
		return nil, databaseError(err, "load client")
	}

	assetID := uuid.New()
	key := ObjectKey(installID, purpose, assetID, ext)

	url, err := s.storage.PresignedUploadURL(ctx, key, contentType, s.cfg.UploadURLTTL)
	if err != nil {
		s.recorder.RecordError(metrics.OpUploadPresign, CodeStorageError)
		return nil, storageFailure(err)
	}

	session := &entities.UploadSession{
		ClientID: installID,
		Status:   entities.UploadSessionPresigned,
		Purpose:  purpose,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Uploads.CreateSession(ctx, session); err != nil {
			return err
		}
		return tx.Uploads.CreateAsset(ctx, &entities.Asset{
			ID:              assetID,
			UploadSessionID: &session.ID,
			StorageProvider: s.storage.Provider(),
			StorageKey:      key,
			MimeType:        contentType,
		})
	})
	if err != nil {
		s.recorder.RecordError(metrics.OpUploadPresign, "persist")
		return nil, databaseError(err, "create upload session")
	}

	s.recorder.RecordOperation(metrics.OpUploadPresign, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpUploadPresign, time.Since(start).Seconds())
	s.log.WithContext(ctx).Info("upload presigned",
		logger.String("install_id", installID),
		logger.String("asset_id", assetID.String()),
		logger.String("purpose", string(purpose)))

	return &Presigned{
		SessionID:  session.ID,
		AssetID:    assetID,
		UploadURL:  url,
		StorageKey: key,
		ExpiresAt:  s.now().Add(s.cfg.UploadURLTTL),
	}, nil
}

// ObjectKey returns the storage key of an uploaded asset.
func ObjectKey(installID string, purpose entities.UploadPurpose, assetID uuid.UUID, ext string) string {
	return fmt.Sprintf("uploads/%s/%s/%s.%s", installID, purpose, assetID, ext)
}

// Complete confirms that the client finished uploading assetID and
// activates the asset. It fails when the object is not in storage yet.
func (s *Service) Complete(ctx context.Context, installID string, assetID uuid.UUID) (*entities.Asset, error) {
	start := time.Now()

	asset, err := s.GetAsset(ctx, installID, assetID)
	if err != nil {
		return nil, err
	}

	if asset.UploadSession.Status != entities.UploadSessionPresigned {
		return nil, s.rejected(metrics.OpUploadComplete, errors.Newf("upload session %s is %s, expected %s",
			asset.UploadSession.ID, asset.UploadSession.Status, entities.UploadSessionPresigned).
			Component("upload").
			Category(errors.CategoryState).
			Code(CodeInvalidSessionState).
			Context("status", string(asset.UploadSession.Status)).
			Build())
	}

	info, err := s.storage.Head(ctx, asset.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, s.rejected(metrics.OpUploadComplete, validationError(CodeUploadNotComplete,
			"object %s has not been uploaded", asset.StorageKey))
	}
	if err != nil {
		s.recorder.RecordError(metrics.OpUploadComplete, CodeStorageError)
		return nil, storageFailure(err)
	}

	sessionID := asset.UploadSession.ID
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Uploads.ActivateAsset(ctx, asset.ID, info.Size, info.ETag); err != nil {
			return err
		}
		return tx.Uploads.TransitionSession(ctx, sessionID, entities.UploadSessionPresigned, entities.UploadSessionCompleted)
	})
	if errors.Is(err, repository.ErrStaleTransition) {
		// A concurrent Complete won.
		return nil, s.rejected(metrics.OpUploadComplete, errors.Newf("upload session %s is no longer %s",
			sessionID, entities.UploadSessionPresigned).
			Component("upload").
			Category(errors.CategoryState).
			Code(CodeInvalidSessionState).
			Build())
	}
	if err != nil {
		s.recorder.RecordError(metrics.OpUploadComplete, "persist")
		return nil, databaseError(err, "complete upload")
	}

	if s.cfg.InspectImages {
		s.inspect(ctx, asset)
	}

	completed, err := s.store.Uploads.GetAsset(ctx, asset.ID)
	if err != nil {
		return nil, databaseError(err, "reload asset")
	}

	s.recorder.RecordOperation(metrics.OpUploadComplete, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpUploadComplete, time.Since(start).Seconds())
	s.log.WithContext(ctx).Info("upload completed",
		logger.String("asset_id", asset.ID.String()),
		logger.Int64("byte_size", info.Size))
	return completed, nil
}

// GetAsset returns an asset uploaded by installID. Assets of other clients
// are reported as not found.
func (s *Service) GetAsset(ctx context.Context, installID string, id uuid.UUID) (*entities.Asset, error) {
	asset, err := s.store.Uploads.GetAsset(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrAssetNotFound) {
		return nil, databaseError(err, "load asset")
	}
	if err != nil || asset.OwnerInstallID() != installID {
		return nil, guard.NotFound(guard.CodeAssetNotFound, "asset %s not found", id)
	}
	return asset, nil
}

func (s *Service) rejected(operation string, err *errors.EnhancedError) error {
	s.recorder.RecordOperation(operation, metrics.StatusError)
	s.recorder.RecordError(operation, err.Code)
	return err
}

func validationError(code, format string, args ...any) *errors.EnhancedError {
	return errors.Newf(format, args...).
		Component("upload").
		Category(errors.CategoryValidation).
		Code(code).
		Build()
}

func storageFailure(err error) error {
	return errors.New(err).
		Component("upload").
		Category(errors.CategoryStorage).
		Code(CodeStorageError).
		Build()
}

func databaseError(err error, operation string) error {
	return errors.New(err).
		Component("upload").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
