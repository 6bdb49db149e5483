package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/datastore/entities"
)

// UploadRepository provides access to upload sessions and assets.
type UploadRepository interface {
	// CreateSession inserts a new upload session.
	CreateSession(ctx context.Context, session *entities.UploadSession) error

	// CreateAsset inserts a new asset.
	CreateAsset(ctx context.Context, asset *entities.Asset) error

	// GetAsset loads an asset with its upload session.
	// Returns ErrAssetNotFound if not found.
	GetAsset(ctx context.Context, id uuid.UUID) (*entities.Asset, error)

	// GetSession returns ErrUploadSessionNotFound if not found.
	GetSession(ctx context.Context, id uuid.UUID) (*entities.UploadSession, error)

	// ActivateAsset records the observed size and checksum and marks the asset active.
	ActivateAsset(ctx context.Context, id uuid.UUID, byteSize int64, checksum string) error

	// TransitionSession moves a session from one status to another.
	// Returns ErrStaleTransition when the session is no longer in from.
	TransitionSession(ctx context.Context, id uuid.UUID, from, to entities.UploadSessionStatus) error

	// SetAssetDimensions stores image width and height.
	SetAssetDimensions(ctx context.Context, id uuid.UUID, width, height int) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new UploadRepository.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) CreateSession(ctx context.Context, session *entities.UploadSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Omit("Client").Create(session).Error, nil)
}

func (r *uploadRepository) CreateAsset(ctx context.Context, asset *entities.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Omit("UploadSession").Create(asset).Error, nil)
}

func (r *uploadRepository) GetAsset(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	var asset entities.Asset
	err := r.db.WithContext(ctx).Preload("UploadSession").Where("id = ?", id).First(&asset).Error
	if err != nil {
		return nil, translate(err, ErrAssetNotFound)
	}
	return &asset, nil
}

func (r *uploadRepository) GetSession(ctx context.Context, id uuid.UUID) (*entities.UploadSession, error) {
	var session entities.UploadSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, translate(err, ErrUploadSessionNotFound)
	}
	return &session, nil
}

func (r *uploadRepository) ActivateAsset(ctx context.Context, id uuid.UUID, byteSize int64, checksum string) error {
	result := r.db.WithContext(ctx).Model(&entities.Asset{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"byte_size": byteSize,
			"checksum":  checksum,
			"is_active": true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *uploadRepository) TransitionSession(ctx context.Context, id uuid.UUID, from, to entities.UploadSessionStatus) error {
	result := r.db.WithContext(ctx).Model(&entities.UploadSession{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *uploadRepository) SetAssetDimensions(ctx context.Context, id uuid.UUID, width, height int) error {
	return r.db.WithContext(ctx).Model(&entities.Asset{}).
		Where("id = ?", id).
		Updates(map[string]any{"width": width, "height": height}).Error
}
