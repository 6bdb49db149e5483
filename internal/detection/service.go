// Package detection owns the lifecycle of a tile detection run: idempotent
// creation, dispatch to the inference service, result polling and
// ingestion. Runs move pending -> running -> succeeded|failed and never
// leave a terminal state.
package detection

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/datastore/repository"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/guard"
	"github.com/handscan/handscan/internal/inference"
	"github.com/handscan/handscan/internal/jobqueue"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability/metrics"
	"github.com/handscan/handscan/internal/storage"
	"github.com/handscan/handscan/internal/tiles"
)

// Stable error codes set by this package.
const (
	CodeUnknownTileLabel = "unknown_tile_label"
	CodeNoTilesDetected  = "no_tiles_detected"
	CodeInvalidSource    = "invalid_source"
	CodeDispatchFailed   = "dispatch_failed"
	CodePollFailed       = "poll_failed"
	CodeIngestionPanic   = "ingestion_panic"
	CodeMissingCallID    = "missing_call_id"
)

const (
	maxErrorMessageRunes = 1000
	maxErrorCodeRunes    = 100
	noTilesMessage       = "no tiles met confidence threshold"

	defaultSweepBatch = 500

	// sharedWorkTimeout bounds work run once for all singleflight callers.
	sharedWorkTimeout = time.Minute
)

// ErrStillRunning is returned by Process while inference has not finished;
// the queue retries it with backoff.
var ErrStillRunning = errors.NewStd("detection still running")

// Scheduler hands a detection to the background worker.
type Scheduler interface {
	Schedule(id uuid.UUID) error
}

// Config controls creation and ingestion of runs.
type Config struct {
	ModelName           string
	ModelVersion        string
	ConfidenceThreshold float64
	NMSIoUThreshold     float64
	EmptyResultPolicy   string
	ReadURLTTL          time.Duration
	SweepBatch          int
}

// ConfigFromSettings extracts the detection configuration.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		ModelName:           settings.Detection.ModelName,
		ModelVersion:        settings.Detection.ModelVersion,
		ConfidenceThreshold: settings.Detection.ConfidenceThreshold,
		NMSIoUThreshold:     settings.Detection.NMSIoUThreshold,
		EmptyResultPolicy:   settings.Detection.EmptyResultPolicy,
		ReadURLTTL:          settings.Storage.ReadURLTTL,
	}
}

// Service runs the detection state machine. Safe for concurrent use.
type Service struct {
	store     *repository.Store
	storage   storage.Storage
	inference inference.Client
	cfg       Config

	scheduler Scheduler
	recorder  metrics.Recorder
	log       logger.Logger
	now       func() time.Time

	// flight collapses concurrent triggers for the same asset and model
	// version, and concurrent dispatches of the same run.
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithScheduler sets the worker that processes created runs.
func WithScheduler(sch Scheduler) Option {
	return func(s *Service) { s.scheduler = sch }
}

// NewService creates a Service.
func NewService(store *repository.Store, st storage.Storage, client inference.Client, cfg Config, opts ...Option) *Service {
	if cfg.ModelName == "" {
		cfg.ModelName = conf.DefaultModelName
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = conf.DefaultModelVersion
	}
	if cfg.EmptyResultPolicy == "" {
		cfg.EmptyResultPolicy = conf.EmptyResultFail
	}
	if cfg.ReadURLTTL <= 0 {
		cfg.ReadURLTTL = time.Hour
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}

	s := &Service{
		store:     store,
		storage:   st,
		inference: client,
		cfg:       cfg,
		recorder:  metrics.NoopRecorder{},
		log:       logger.Global().Module("detection"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScheduler replaces the scheduler. NewWorker calls it.
func (s *Service) SetScheduler(sch Scheduler) {
	s.scheduler = sch
}

// ModelVersion returns the configured model version.
func (s *Service) ModelVersion() string {
	return s.cfg.ModelVersion
}

type triggerResult struct {
	detection *entities.HandDetection
	created   bool
}

// TriggerAsset loads the asset and calls Trigger.
func (s *Service) TriggerAsset(ctx context.Context, assetID uuid.UUID, installID string, source entities.HandSource) (*entities.HandDetection, bool, error) {
	asset, err := s.store.Uploads.GetAsset(ctx, assetID)
	if errors.Is(err, repository.ErrAssetNotFound) {
		return nil, false, guard.NotFound(guard.CodeAssetNotFound, "asset %s not found", assetID)
	}
	if err != nil {
		return nil, false, databaseError(err, "load asset")
	}
	return s.Trigger(ctx, asset, installID, source)
}

// Trigger returns the live run for the asset and configured model version,
// creating and dispatching a new one when none exists or the latest failed.
// created reports whether this call created the run.
//
// When dispatch of a new run fails the run stays pending and is returned
// together with the dispatch error; the worker retries it.
func (s *Service) Trigger(ctx context.Context, asset *entities.Asset, installID string, source entities.HandSource) (*entities.HandDetection, bool, error) {
	start := time.Now()
	defer func() { s.recorder.RecordDuration(metrics.OpTrigger, time.Since(start).Seconds()) }()

	if source == "" {
		source = entities.SourceCamera
	}
	if !source.IsValid() {
		return nil, false, errors.Newf("invalid hand source %q", source).
			Component("detection").
			Category(errors.CategoryValidation).
			Code(CodeInvalidSource).
			Build()
	}
	if err := guard.AssetOwnedBy(asset, installID); err != nil {
		return nil, false, err
	}
	if err := guard.AssetActive(asset); err != nil {
		return nil, false, err
	}

	liveKey := entities.LiveKeyFor(asset.ID, s.cfg.ModelVersion)

	// Do runs fn on the calling goroutine, so leader is only set for the
	// caller that actually executed the lookup.
	leader := false
	v, err, _ := s.flight.Do(liveKey, func() (any, error) {
		leader = true
		shared, cancel := detached(ctx)
		defer cancel()
		return s.findOrCreate(shared, asset, installID, source, liveKey)
	})
	if err != nil {
		s.recorder.RecordError(metrics.OpTrigger, errors.CodeOf(err))
		return nil, false, err
	}
	res := v.(triggerResult)
	created := leader && res.created

	log := s.log.WithContext(ctx).With(
		logger.String("detection_id", res.detection.ID.String()),
		logger.String("asset_id", asset.ID.String()))

	if !created {
		s.recorder.RecordOperation(metrics.OpTrigger, metrics.StatusReused)
		log.Debug("reusing live detection", logger.String("status", string(res.detection.Status)))
		detection, err := s.load(ctx, res.detection.ID)
		return detection, false, err
	}

	s.recorder.RecordOperation(metrics.OpTrigger, metrics.StatusCreated)
	log.Info("detection created", logger.String("model_version", s.cfg.ModelVersion))

	dispatchErr := s.Dispatch(ctx, res.detection.ID)
	s.schedule(res.detection.ID)

	detection, err := s.load(ctx, res.detection.ID)
	if err != nil {
		return nil, true, err
	}
	return detection, true, dispatchErr
}

func (s *Service) findOrCreate(ctx context.Context, asset *entities.Asset, installID string, source entities.HandSource, liveKey string) (triggerResult, error) {
	existing, err := s.findReusable(ctx, asset.ID)
	if err != nil {
		return triggerResult{}, err
	}
	if existing != nil {
		return triggerResult{detection: existing}, nil
	}

	var detection *entities.HandDetection
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		hand := &entities.Hand{ClientID: installID, Source: source}
		if err := tx.Hands.Create(ctx, hand); err != nil {
			return err
		}

		ref, err := tx.Hands.AttachAsset(ctx, asset, entities.OwnerHand, hand.ID, entities.RoleHandPhoto, nil)
		if err != nil {
			return err
		}

		key := liveKey
		detection = &entities.HandDetection{
			HandID:       hand.ID,
			AssetRefID:   ref.ID,
			Status:       entities.DetectionPending,
			ModelName:    s.cfg.ModelName,
			ModelVersion: s.cfg.ModelVersion,
			LiveKey:      &key,
		}
		return tx.Detections.Create(ctx, detection)
	})

	if errors.Is(err, repository.ErrDuplicateKey) {
		// Another process created the live run between our lookup and insert.
		winner, findErr := s.store.Detections.FindLive(ctx, liveKey)
		if findErr != nil {
			return triggerResult{}, databaseError(findErr, "find live detection")
		}
		return triggerResult{detection: winner}, nil
	}
	if err != nil {
		return triggerResult{}, databaseError(err, "create detection")
	}
	return triggerResult{detection: detection, created: true}, nil
}

// findReusable returns the newest non-failed run for the asset's latest
// hand_photo reference, or nil.
func (s *Service) findReusable(ctx context.Context, assetID uuid.UUID) (*entities.HandDetection, error) {
	ref, err := s.store.Hands.LatestAssetRef(ctx, assetID, entities.RoleHandPhoto)
	if errors.Is(err, repository.ErrAssetRefNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, databaseError(err, "find asset reference")
	}

	latest, err := s.store.Detections.LatestForHand(ctx, ref.OwnerID, s.cfg.ModelVersion)
	if errors.Is(err, repository.ErrDetectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, databaseError(err, "find latest detection")
	}
	if latest.Status == entities.DetectionFailed {
		return nil, nil
	}
	return latest, nil
}

// Dispatch submits a pending run to inference and marks it running. Runs
// in any other state are left alone. Failures leave the run pending and are
// returned as network, integration or storage errors.
func (s *Service) Dispatch(ctx context.Context, id uuid.UUID) error {
	_, err, _ := s.flight.Do("dispatch:"+id.String(), func() (any, error) {
		shared, cancel := detached(ctx)
		defer cancel()
		return nil, s.dispatch(shared, id)
	})
	return err
}

// detached keeps the values of ctx but not its cancellation, so one caller
// leaving does not fail the others waiting on the same singleflight key.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedWorkTimeout)
}

func (s *Service) dispatch(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	detection, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if detection.Status != entities.DetectionPending {
		return nil
	}

	log := s.log.WithContext(ctx).With(logger.String("detection_id", id.String()))

	ref, err := s.store.Hands.GetAssetRef(ctx, detection.AssetRefID)
	if err != nil {
		return s.dispatchFailed(log, id, err)
	}

	imageURL, err := s.storage.PresignedReadURL(ctx, ref.Asset.StorageKey, s.cfg.ReadURLTTL)
	if err != nil {
		return s.dispatchFailed(log, id, err)
	}

	callID, err := s.inference.Submit(ctx, imageURL, detection.ModelVersion)
	if err != nil {
		return s.dispatchFailed(log, id, err)
	}

	if err := s.store.Detections.MarkDispatched(ctx, id, callID); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			log.Warn("detection left pending before dispatch was recorded", logger.String("call_id", callID))
			return nil
		}
		return databaseError(err, "record dispatch")
	}

	s.recorder.RecordOperation(metrics.OpDispatch, metrics.StatusSuccess)
	s.recorder.RecordDuration(metrics.OpDispatch, time.Since(start).Seconds())
	log.Info("detection dispatched",
		logger.String("call_id", callID),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Service) dispatchFailed(log logger.Logger, id uuid.UUID, err error) error {
	wrapped := infrastructureError(err, id, CodeDispatchFailed)
	s.recorder.RecordOperation(metrics.OpDispatch, metrics.StatusError)
	s.recorder.RecordError(metrics.OpDispatch, wrapped.Code)
	log.Warn("detection dispatch failed", logger.Error(err), logger.String("code", wrapped.Code))
	return wrapped
}

// infrastructureError keeps the network, integration and storage categories
// of err and classifies anything else as an integration failure. err's own
// code is kept when it has one.
func infrastructureError(err error, id uuid.UUID, fallbackCode string) *errors.EnhancedError {
	category := errors.CategoryOf(err)
	switch category {
	case errors.CategoryNetwork, errors.CategoryIntegration, errors.CategoryStorage:
	default:
		category = errors.CategoryIntegration
	}

	builder := errors.New(err).
		Component("detection").
		Category(category).
		Context("detection_id", id.String())
	if errors.CodeOf(err) == "" {
		builder = builder.Code(fallbackCode)
	}
	return builder.Build()
}

// Poll advances a run by one step. Terminal runs are returned unchanged, a
// pending run is dispatched, and a running run is checked with inference
// and ingested once its result is available. Transport failures are
// returned and leave the run as it was.
func (s *Service) Poll(ctx context.Context, id uuid.UUID) (*entities.HandDetection, error) {
	detection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch detection.Status {
	case entities.DetectionSucceeded, entities.DetectionFailed:
		return detection, nil

	case entities.DetectionPending:
		if err := s.Dispatch(ctx, id); err != nil {
			return nil, err
		}
		return s.load(ctx, id)
	}

	if detection.CallID == nil || *detection.CallID == "" {
		// Running without a remote call cannot make progress.
		if err := s.fail(ctx, id, repository.Failure{
			Code:    CodeMissingCallID,
			Message: "detection is running without an inference call id",
		}); err != nil {
			return nil, err
		}
		return s.load(ctx, id)
	}

	start := time.Now()
	result, err := s.inference.Poll(ctx, *detection.CallID)
	s.recorder.RecordDuration(metrics.OpPoll, time.Since(start).Seconds())
	if err != nil {
		s.recorder.RecordOperation(metrics.OpPoll, metrics.StatusError)
		wrapped := infrastructureError(err, id, CodePollFailed)
		s.recorder.RecordError(metrics.OpPoll, wrapped.Code)
		return nil, wrapped
	}
	if result == nil || result.Pending {
		s.recorder.RecordOperation(metrics.OpPoll, metrics.StatusPending)
		return detection, nil
	}

	s.recorder.RecordOperation(metrics.OpPoll, metrics.StatusSuccess)
	return s.Ingest(ctx, id, result)
}

// outcome is the surviving tiles of one inference result.
type outcome struct {
	tiles      []entities.DetectionTile
	confidence float64
}

// Ingest applies an inference result to a run. A terminal run is returned
// unchanged, which makes duplicate delivery harmless. Any problem with the
// result, including a panic, fails the run instead of returning an error;
// an error is returned only when the new state cannot be stored.
func (s *Service) Ingest(ctx context.Context, id uuid.UUID, result *inference.Result) (*entities.HandDetection, error) {
	start := time.Now()

	detection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if detection.Status.IsTerminal() {
		return detection, nil
	}

	if detection.Status == entities.DetectionPending {
		if err := s.store.Detections.MarkRunning(ctx, id); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return nil, databaseError(err, "mark detection running")
		}
	}

	log := s.log.WithContext(ctx).With(logger.String("detection_id", id.String()))
	raw := rawResult(result)

	out, evalErr := s.evaluate(result)
	switch {
	case evalErr != nil:
		err = s.fail(ctx, id, failureFor(evalErr, raw))

	case len(out.tiles) == 0:
		err = s.finishEmpty(ctx, id, result, raw)

	default:
		err = s.store.Detections.Complete(ctx, id, repository.Completion{
			Tiles:             out.tiles,
			ConfidenceOverall: out.confidence,
			InferenceTimeMs:   result.InferenceTimeMs,
			RawResult:         raw,
		})
		if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			log.Error("storing detection tiles failed", logger.Error(err))
			err = s.fail(ctx, id, failureFor(err, raw))
		}
	}

	if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		s.recorder.RecordError(metrics.OpIngest, "persist")
		return nil, err
	}

	final, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recorder.RecordOperation(metrics.OpIngest, string(final.Status))
	s.recorder.RecordDuration(metrics.OpIngest, time.Since(start).Seconds())
	if final.Status == entities.DetectionFailed {
		s.recorder.RecordError(metrics.OpIngest, final.ErrorCode)
	}
	log.Info("detection finished",
		logger.String("status", string(final.Status)),
		logger.Int("tiles", len(final.Tiles)),
		logger.String("error_code", final.ErrorCode))
	return final, nil
}

// evaluate maps labels, applies the confidence threshold and suppression.
// Panics are converted to errors.
func (s *Service) evaluate(result *inference.Result) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{}
			err = errors.Newf("panic during ingestion: %v", r).
				Component("detection").
				Category(errors.CategoryProcessing).
				Code(CodeIngestionPanic).
				Build()
		}
	}()

	if result == nil {
		return outcome{}, errors.NewStd("nil inference result")
	}

	candidates := make([]candidate, 0, len(result.Detections))
	for _, box := range result.Detections {
		code, ok := tiles.LabelToCode(box.Label)
		if !ok {
			return outcome{}, errors.Newf("unknown tile label from model: %s", box.Label).
				Component("detection").
				Category(errors.CategoryProcessing).
				Code(CodeUnknownTileLabel).
				Context("label", box.Label).
				Build()
		}
		candidates = append(candidates, candidate{code: code, box: box})
	}

	kept := suppress(filterByConfidence(candidates, s.cfg.ConfidenceThreshold), s.cfg.NMSIoUThreshold)
	if len(kept) == 0 {
		return outcome{}, nil
	}

	out.tiles = make([]entities.DetectionTile, 0, len(kept))
	var sum float64
	for _, c := range kept {
		out.tiles = append(out.tiles, entities.DetectionTile{
			TileCode:   string(c.code),
			X1:         int(c.box.X1),
			Y1:         int(c.box.Y1),
			X2:         int(c.box.X2),
			Y2:         int(c.box.Y2),
			Confidence: round4(c.box.Confidence),
		})
		sum += c.box.Confidence
	}
	out.confidence = round4(sum / float64(len(kept)))
	return out, nil
}

// finishEmpty applies the zero-tile policy. It is the only place deciding
// what an empty result means.
func (s *Service) finishEmpty(ctx context.Context, id uuid.UUID, result *inference.Result, raw datatypes.JSON) error {
	if s.cfg.EmptyResultPolicy == conf.EmptyResultSucceed {
		return s.store.Detections.Complete(ctx, id, repository.Completion{
			ConfidenceOverall: 0,
			InferenceTimeMs:   result.InferenceTimeMs,
			RawResult:         raw,
		})
	}

	zero := 0.0
	return s.fail(ctx, id, repository.Failure{
		Code:              CodeNoTilesDetected,
		Message:           noTilesMessage,
		ConfidenceOverall: &zero,
		RawResult:         raw,
	})
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, failure repository.Failure) error {
	err := s.store.Detections.Fail(ctx, id, failure)
	if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		return databaseError(err, "mark detection failed")
	}
	s.log.WithContext(ctx).Warn("detection failed",
		logger.String("detection_id", id.String()),
		logger.String("error_code", failure.Code),
		logger.String("error_message", failure.Message))
	return nil
}

// failureFor records an error as the failure of a run. The code is the
// error's stable code, or its Go type name when it has none.
func failureFor(err error, raw datatypes.JSON) repository.Failure {
	code := errors.CodeOf(err)
	if code == "" {
		code = fmt.Sprintf("%T", err)
	}
	return repository.Failure{
		Code:      truncateRunes(code, maxErrorCodeRunes),
		Message:   truncateRunes(err.Error(), maxErrorMessageRunes),
		RawResult: raw,
	}
}

// Process is the queue action for one run. It polls once and returns
// ErrStillRunning while the run is not terminal so the queue retries later.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	detection, err := s.Poll(ctx, id)
	if err != nil {
		if errors.HasCode(err, guard.CodeDetectionNotFound) {
			return jobqueue.Permanent(err)
		}
		return err
	}
	if !detection.Status.IsTerminal() {
		return ErrStillRunning
	}
	return nil
}

// Sweep schedules pending and running runs that have not changed for
// olderThan. It returns how many were scheduled.
func (s *Service) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.scheduler == nil {
		return 0, errors.Newf("detection sweep requires a scheduler").
			Component("detection").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cutoff := s.now().Add(-olderThan)
	stale, err := s.store.Detections.ListStale(ctx,
		[]entities.DetectionStatus{entities.DetectionPending, entities.DetectionRunning},
		cutoff, s.cfg.SweepBatch)
	if err != nil {
		return 0, databaseError(err, "list stale detections")
	}

	scheduled := 0
	for i := range stale {
		if err := s.scheduler.Schedule(stale[i].ID); err != nil {
			s.log.Warn("failed to schedule stale detection",
				logger.String("detection_id", stale[i].ID.String()),
				logger.Error(err))
			continue
		}
		scheduled++
	}

	s.recorder.RecordOperation(metrics.OpSweep, metrics.StatusSuccess)
	if scheduled > 0 {
		s.log.Info("stale detections rescheduled",
			logger.Int("count", scheduled),
			logger.Time("cutoff", cutoff))
	}
	return scheduled, nil
}

// Get returns a run owned by installID with its tiles.
func (s *Service) Get(ctx context.Context, installID string, id uuid.UUID) (*entities.HandDetection, error) {
	detection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard.DetectionOwnedBy(detection, installID); err != nil {
		return nil, err
	}
	return detection, nil
}

// PollOwned checks ownership and then polls.
func (s *Service) PollOwned(ctx context.Context, installID string, id uuid.UUID) (*entities.HandDetection, error) {
	if _, err := s.Get(ctx, installID, id); err != nil {
		return nil, err
	}
	return s.Poll(ctx, id)
}

func (s *Service) schedule(id uuid.UUID) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Schedule(id); err != nil {
		s.log.Warn("failed to schedule detection",
			logger.String("detection_id", id.String()),
			logger.Error(err))
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*entities.HandDetection, error) {
	detection, err := s.store.Detections.GetByID(ctx, id)
	if errors.Is(err, repository.ErrDetectionNotFound) {
		return nil, guard.NotFound(guard.CodeDetectionNotFound, "detection %s not found", id)
	}
	if err != nil {
		return nil, databaseError(err, "load detection")
	}
	return detection, nil
}

func databaseError(err error, operation string) error {
	return errors.New(err).
		Component("detection").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

func rawResult(result *inference.Result) datatypes.JSON {
	if result == nil || len(result.Raw) == 0 {
		return nil
	}
	return datatypes.JSON(result.Raw)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
