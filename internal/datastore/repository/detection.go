package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/handscan/handscan/internal/datastore/entities"
)


// DetectionRepository provides access to detection runs and their tiles.
// State changes are conditional on the current status so that concurrent
// writers cannot move a run backwards or out of a terminal state.
type DetectionRepository interface {
	// Create inserts a pending run. Returns ErrDuplicateKey when a live run
	// already holds the same live key.
	Create(ctx context.Context, detection *entities.HandDetection) error

	// GetByID loads a run with its tiles and hand.
	// Returns ErrDetectionNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*entities.HandDetection, error)

	// LatestForHand returns the newest run for a hand and model version.
	LatestForHand(ctx context.Context, handID uuid.UUID, modelVersion string) (*entities.HandDetection, error)

	// FindLive returns the run currently holding liveKey.
	FindLive(ctx context.Context, liveKey string) (*entities.HandDetection, error)

	// MarkRunning moves a pending run to running.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// MarkDispatched records the remote call id and moves a pending run to running.
	MarkDispatched(ctx context.Context, id uuid.UUID, callID string) error

	// Complete stores tiles and marks an open run succeeded.
	Complete(ctx context.Context, id uuid.UUID, result Completion) error

	// Fail marks an open run failed and releases its live key.
	Fail(ctx context.Context, id uuid.UUID, failure Failure) error

	// ListStale returns open runs with the given statuses not updated since olderThan.
	ListStale(ctx context.Context, statuses []entities.DetectionStatus, olderThan time.Time, limit int) ([]entities.HandDetection, error)
}

// Completion is the outcome of a successful run.
type Completion struct {
	Tiles             []entities.DetectionTile
	ConfidenceOverall float64
	InferenceTimeMs   *int64
	RawResult         datatypes.JSON
}

// Failure describes why a run failed.
type Failure struct {
	Code              string
	Message           string
	ConfidenceOverall *float64
	RawResult         datatypes.JSON
}

type detectionRepository struct {
	db *gorm.DB
}

// NewDetectionRepository creates a new DetectionRepository.
func NewDetectionRepository(db *gorm.DB) DetectionRepository {
	return &detectionRepository{db: db}
}

func (r *detectionRepository) Create(ctx context.Context, detection *entities.HandDetection) error {
	if detection.ID == uuid.Nil {
		detection.ID = uuid.New()
	}
	if detection.Status == "" {
		detection.Status = entities.DetectionPending
	}
	err := r.db.WithContext(ctx).Omit("Hand", "AssetRef", "Tiles").Create(detection).Error
	return translate(err, nil)
}

func (r *detectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HandDetection, error) {
	var detection entities.HandDetection
	err := r.db.WithContext(ctx).
		Preload("Tiles", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Hand").
		Where("id = ?", id).
		First(&detection).Error
	if err != nil {
		return nil, translate(err, ErrDetectionNotFound)
	}
	return &detection, nil
}

func (r *detectionRepository) LatestForHand(ctx context.Context, handID uuid.UUID, modelVersion string) (*entities.HandDetection, error) {
	var detection entities.HandDetection
	err := r.db.WithContext(ctx).
		Where("hand_id = ? AND model_version = ?", handID, modelVersion).
		Order("created_at DESC").
		First(&detection).Error
	if err != nil {
		return nil, translate(err, ErrDetectionNotFound)
	}
	return &detection, nil
}

func (r *detectionRepository) FindLive(ctx context.Context, liveKey string) (*entities.HandDetection, error) {
	var detection entities.HandDetection
	err := r.db.WithContext(ctx).Where("live_key = ?", liveKey).First(&detection).Error
	if err != nil {
		return nil, translate(err, ErrDetectionNotFound)
	}
	return &detection, nil
}

func (r *detectionRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, entities.DetectionRunning, map[string]any{})
}

func (r *detectionRepository) MarkDispatched(ctx context.Context, id uuid.UUID, callID string) error {
	return r.transition(ctx, id, entities.DetectionRunning, map[string]any{
		"call_id": callID,
	})
}

func (r *detectionRepository) Complete(ctx context.Context, id uuid.UUID, result Completion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &detectionRepository{db: tx}
		updates := map[string]any{
			"confidence_overall": result.ConfidenceOverall,
			"error_code":         "",
			"error_message":      "",
		}
		if result.InferenceTimeMs != nil {
			updates["inference_time_ms"] = *result.InferenceTimeMs
		}
		if len(result.RawResult) > 0 {
			updates["raw_result"] = result.RawResult
		}
		if err := scoped.transition(ctx, id, entities.DetectionSucceeded, updates); err != nil {
			return err
		}

		if len(result.Tiles) == 0 {
			return nil
		}
		for i := range result.Tiles {
			result.Tiles[i].ID = 0
			result.Tiles[i].HandDetectionID = id
		}
		return tx.Create(&result.Tiles).Error
	})
}

func (r *detectionRepository) Fail(ctx context.Context, id uuid.UUID, failure Failure) error {
	updates := map[string]any{
		"live_key":      nil,
		"error_code":    failure.Code,
		"error_message": failure.Message,
	}
	if failure.ConfidenceOverall != nil {
		updates["confidence_overall"] = *failure.ConfidenceOverall
	}
	if len(failure.RawResult) > 0 {
		updates["raw_result"] = failure.RawResult
	}
	return r.transition(ctx, id, entities.DetectionFailed, updates)
}

func (r *detectionRepository) ListStale(ctx context.Context, statuses []entities.DetectionStatus, olderThan time.Time, limit int) ([]entities.HandDetection, error) {
	var detections []entities.HandDetection
	query := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, olderThan.UTC()).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&detections).Error; err != nil {
		return nil, err
	}
	return detections, nil
}

// transition moves the run to next together with updates. It matches only
// rows whose status may move to next, so a concurrent writer that got there
// first turns this call into ErrStaleTransition.
func (r *detectionRepository) transition(ctx context.Context, id uuid.UUID, next entities.DetectionStatus, updates map[string]any) error {
	updates["status"] = next
	result := r.db.WithContext(ctx).Model(&entities.HandDetection{}).
		Where("id = ? AND status IN ?", id, entities.SourcesOf(next)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}
