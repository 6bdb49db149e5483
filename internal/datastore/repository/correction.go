package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/datastore/entities"
)

// CorrectionRepository provides access to hand corrections.
type CorrectionRepository interface {
	// Create inserts a correction together with its tiles.
	Create(ctx context.Context, correction *entities.HandCorrection) error

	// GetByID loads a correction with its hand and ordered tiles.
	// Returns ErrCorrectionNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*entities.HandCorrection, error)

	// ListByClient returns the client's corrections, newest first, optionally
	// restricted to one hand.
	ListByClient(ctx context.Context, installID string, handID *uuid.UUID) ([]entities.HandCorrection, error)
}

type correctionRepository struct {
	db *gorm.DB
}

// NewCorrectionRepository creates a new CorrectionRepository.
func NewCorrectionRepository(db *gorm.DB) CorrectionRepository {
	return &correctionRepository{db: db}
}

func (r *correctionRepository) Create(ctx context.Context, correction *entities.HandCorrection) error {
	if correction.ID == uuid.Nil {
		correction.ID = uuid.New()
	}
	for i := range correction.Tiles {
		correction.Tiles[i].HandCorrectionID = correction.ID
	}
	err := r.db.WithContext(ctx).Omit("Hand", "HandDetection").Create(correction).Error
	return translate(err, nil)
}

func orderedTiles(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}

func (r *correctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HandCorrection, error) {
	var correction entities.HandCorrection
	err := r.db.WithContext(ctx).
		Preload("Tiles", orderedTiles).
		Preload("Hand").
		Where("id = ?", id).
		First(&correction).Error
	if err != nil {
		return nil, translate(err, ErrCorrectionNotFound)
	}
	return &correction, nil
}

func (r *correctionRepository) ListByClient(ctx context.Context, installID string, handID *uuid.UUID) ([]entities.HandCorrection, error) {
	query := r.db.WithContext(ctx).
		Preload("Tiles", orderedTiles).
		Preload("Hand").
		Joins("JOIN hands ON hands.id = hand_corrections.hand_id").
		Where("hands.client_id = ?", installID)
	if handID != nil {
		query = query.Where("hand_corrections.hand_id = ?", *handID)
	}

	var corrections []entities.HandCorrection
	if err := query.Order("hand_corrections.created_at DESC").Find(&corrections).Error; err != nil {
		return nil, err
	}
	return corrections, nil
}
