// Package correction builds user-confirmed tile snapshots for a hand.
package correction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/guard"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability/metrics"
	"github.com/handscan/handscan/internal/tiles"
)

// Stable error codes set by this package.
const (
	CodeInvalidTileData       = "invalid_tile_data"
	CodeDetectionHandMismatch = "detection_hand_mismatch"
)

// TileInput is one tile of a proposed correction.
type TileInput struct {
	Code      string
	SortOrder int
}

// CreateRequest is a correction submitted by a client.
type CreateRequest struct {
	HandID      uuid.UUID
	DetectionID *uuid.UUID
	Tiles       []TileInput
}

// Service creates and reads hand corrections.
type Service struct {
	store    *repository.Store
	recorder metrics.Recorder
	log      logger.Logger
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(store *repository.Store, recorder metrics.Recorder, log logger.Logger) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if log == nil {
		log = logger.Global().Module("correction")
	}
	return &Service{store: store, recorder: recorder, log: log}
}

// Submit resolves and checks the hand and optional detection for installID,
// then calls Create.
func (s *Service) Submit(ctx context.Context, installID string, req CreateRequest) (*entities.HandCorrection, error) {
	hand, err := s.store.Hands.GetByID(ctx, req.HandID)
	if errors.Is(err, repository.ErrHandNotFound) {
		return nil, guard.NotFound(guard.CodeHandNotFound, "hand %s not found", req.HandID)
	}
	if err != nil {
		return nil, databaseError(err, "load hand")
	}
	if err := guard.HandOwnedBy(hand, installID); err != nil {
		return nil, err
	}

	var detection *entities.HandDetection
	if req.DetectionID != nil {
		detection, err = s.store.Detections.GetByID(ctx, *req.DetectionID)
		if errors.Is(err, repository.ErrDetectionNotFound) {
			return nil, guard.NotFound(guard.CodeDetectionNotFound, "detection %s not found", *req.DetectionID)
		}
		if err != nil {
			return nil, databaseError(err, "load detection")
		}
		if err := guard.DetectionOwnedBy(detection, installID); err != nil {
			return nil, err
		}
	}

	return s.Create(ctx, hand, req.Tiles, detection)
}

// Create stores a new correction for hand and makes it the hand's active
// correction. detection, when given, must belong to the same hand. Nothing
// is written when validation fails.
func (s *Service) Create(ctx context.Context, hand *entities.Hand, input []TileInput, detection *entities.HandDetection) (*entities.HandCorrection, error) {
	start := time.Now()

	if detection != nil && detection.HandID != hand.ID {
		return nil, s.rejected(errors.Newf("detection %s does not belong to hand %s", detection.ID, hand.ID).
			Component("correction").
			Category(errors.CategoryValidation).
			Code(CodeDetectionHandMismatch).
			Build())
	}

	codes := make([]string, len(input))
	for i, t := range input {
		codes[i] = t.Code
	}
	if problems := tiles.Validate(codes); len(problems) > 0 {
		return nil, s.rejected(errors.Newf("%s", strings.Join(problems, "; ")).
			Component("correction").
			Category(errors.CategoryValidation).
			Code(CodeInvalidTileData).
			Context("hand_id", hand.ID.String()).
			Build())
	}

	correction := &entities.HandCorrection{
		HandID: hand.ID,
		Tiles:  make([]entities.HandTile, len(input)),
	}
	if detection != nil {
		id := detection.ID
		correction.HandDetectionID = &id
	}
	for i, t := range input {
		correction.Tiles[i] = entities.HandTile{TileCode: t.Code, SortOrder: t.SortOrder}
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Corrections.Create(ctx, correction); err != nil {
			return err
		}
		return tx.Hands.SetActiveCorrection(ctx, hand.ID, correction.ID)
	})
	if err != nil {
		s.recorder.RecordError(metrics.OpCorrectionCreate, "persist")
		return nil, databaseError(err, "create correction")
	}

	created, err := s.store.Corrections.GetByID(ctx, correction.ID)
	if err != nil {
		return nil, databaseError(err, "reload correction")
	}

	s.recorder.RecordOperation(metrics.OpCorrectionCreate, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpCorrectionCreate, time.Since(start).Seconds())
	s.log.WithContext(ctx).Info("hand correction created",
		logger.String("correction_id", created.ID.String()),
		logger.String("hand_id", hand.ID.String()),
		logger.Int("tiles", len(created.Tiles)))
	return created, nil
}

// Get returns a correction owned by installID with its ordered tiles.
func (s *Service) Get(ctx context.Context, installID string, id uuid.UUID) (*entities.HandCorrection, error) {
	correction, err := s.store.Corrections.GetByID(ctx, id)
	if errors.Is(err, repository.ErrCorrectionNotFound) {
		return nil, guard.NotFound(guard.CodeCorrectionNotFound, "correction %s not found", id)
	}
	if err != nil {
		return nil, databaseError(err, "load correction")
	}
	if err := guard.CorrectionOwnedBy(correction, installID); err != nil {
		return nil, err
	}
	return correction, nil
}

// List returns installID's corrections, newest first. handID narrows the
// list to one hand, which must belong to the client.
func (s *Service) List(ctx context.Context, installID string, handID *uuid.UUID) ([]entities.HandCorrection, error) {
	if handID != nil {
		hand, err := s.store.Hands.GetByID(ctx, *handID)
		if errors.Is(err, repository.ErrHandNotFound) {
			return nil, guard.NotFound(guard.CodeHandNotFound, "hand %s not found", *handID)
		}
		if err != nil {
			return nil, databaseError(err, "load hand")
		}
		if err := guard.HandOwnedBy(hand, installID); err != nil {
			return nil, err
		}
	}

	corrections, err := s.store.Corrections.ListByClient(ctx, installID, handID)
	if err != nil {
		return nil, databaseError(err, "list corrections")
	}
	return corrections, nil
}

// IsActive reports whether correction is the hand's active correction.
func IsActive(hand *entities.Hand, correction *entities.HandCorrection) bool {
	return correction != nil && correction.IsActiveFor(hand)
}

func (s *Service) rejected(err *errors.EnhancedError) error {
	s.recorder.RecordOperation(metrics.OpCorrectionCreate, metrics.StatusError)
	s.recorder.RecordError(metrics.OpCorrectionCreate, err.Code)
	return err
}

func databaseError(err error, operation string) error {
	return errors.New(err).
		Component("correction").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
