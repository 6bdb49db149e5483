package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/datastore/entities"
)

// HandRepository provides access to hands and their asset references.
type HandRepository interface {
	// Create inserts a new hand.
	Create(ctx context.Context, hand *entities.Hand) error

	// GetByID returns ErrHandNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Hand, error)

	// AttachAsset references asset from the given owner. capturedAt defaults to
	// the asset's EXIF capture time, then to now. Ordering is appended after
	// the owner's existing refs for the same role.
	AttachAsset(ctx context.Context, asset *entities.Asset, kind entities.OwnerKind, ownerID uuid.UUID, role entities.AssetRole, capturedAt *time.Time) (*entities.AssetRef, error)

	// LatestAssetRef returns the most recent ref of asset with role.
	// Returns ErrAssetRefNotFound if none exists.
	LatestAssetRef(ctx context.Context, assetID uuid.UUID, role entities.AssetRole) (*entities.AssetRef, error)

	// GetAssetRef loads a ref with its asset.
	GetAssetRef(ctx context.Context, id uuid.UUID) (*entities.AssetRef, error)

	// SetActiveCorrection repoints the hand's active correction.
	SetActiveCorrection(ctx context.Context, handID, correctionID uuid.UUID) error
}

type handRepository struct {
	db *gorm.DB
}

// NewHandRepository creates a new HandRepository.
func NewHandRepository(db *gorm.DB) HandRepository {
	return &handRepository{db: db}
}

func (r *handRepository) Create(ctx context.Context, hand *entities.Hand) error {
	if hand.ID == uuid.Nil {
		hand.ID = uuid.New()
	}
	if hand.Source == "" {
		hand.Source = entities.SourceCamera
	}
	return translate(r.db.WithContext(ctx).Omit("Client").Create(hand).Error, nil)
}

func (r *handRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Hand, error) {
	var hand entities.Hand
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&hand).Error
	if err != nil {
		return nil, translate(err, ErrHandNotFound)
	}
	return &hand, nil
}

func (r *handRepository) AttachAsset(ctx context.Context, asset *entities.Asset, kind entities.OwnerKind, ownerID uuid.UUID, role entities.AssetRole, capturedAt *time.Time) (*entities.AssetRef, error) {
	var when time.Time
	switch {
	case capturedAt != nil:
		when = *capturedAt
	case asset.ExifCapturedAt != nil:
		when = *asset.ExifCapturedAt
	default:
		when = time.Now()
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&entities.AssetRef{}).
		Where("owner_kind = ? AND owner_id = ? AND role = ?", kind, ownerID, role).
		Count(&existing).Error; err != nil {
		return nil, err
	}

	ref := &entities.AssetRef{
		ID:         uuid.New(),
		AssetID:    asset.ID,
		OwnerKind:  kind,
		OwnerID:    ownerID,
		Role:       role,
		Ordering:   int(existing),
		CapturedAt: when,
	}
	if err := r.db.WithContext(ctx).Omit("Asset").Create(ref).Error; err != nil {
		return nil, translate(err, nil)
	}
	return ref, nil
}

func (r *handRepository) LatestAssetRef(ctx context.Context, assetID uuid.UUID, role entities.AssetRole) (*entities.AssetRef, error) {
	var ref entities.AssetRef
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND role = ?", assetID, role).
		Order("created_at DESC").
		First(&ref).Error
	if err != nil {
		return nil, translate(err, ErrAssetRefNotFound)
	}
	return &ref, nil
}

func (r *handRepository) GetAssetRef(ctx context.Context, id uuid.UUID) (*entities.AssetRef, error) {
	var ref entities.AssetRef
	err := r.db.WithContext(ctx).Preload("Asset").Where("id = ?", id).First(&ref).Error
	if err != nil {
		return nil, translate(err, ErrAssetRefNotFound)
	}
	return &ref, nil
}

func (r *handRepository) SetActiveCorrection(ctx context.Context, handID, correctionID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&entities.Hand{}).
		Where("id = ?", handID).
		Update("active_hand_correction_id", correctionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHandNotFound
	}
	return nil
}
