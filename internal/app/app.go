// Package app builds the handscan services from settings. The serve and
// worker commands share it.
package app

import (
	"context"
	"fmt"

	"github.com/handscan/handscan/internal/api"
	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/correction"
	"github.com/handscan/handscan/internal/datastore"
	"github.com/handscan/handscan/internal/detection"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/identity"
	"github.com/handscan/handscan/internal/inference"
	"github.com/handscan/handscan/internal/jobqueue"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability"
	"github.com/handscan/handscan/internal/storage"
	"github.com/handscan/handscan/internal/telemetry"
	"github.com/handscan/handscan/internal/upload"
)

// App holds the wired services of one process.
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Log      logger.Logger

	DB          *datastore.Manager
	Storage     storage.Storage
	Metrics     *observability.Metrics
	Inference   *inference.Modal
	Identity    *identity.Service
	Uploads     *upload.Service
	Detections  *detection.Service
	Corrections *correction.Service

	central       *logger.CentralLogger
	flushSentry   func()
	workerEnabled bool
}

// SetupLogging installs the central logger configured by settings as the
// global logger. Debug mode lowers the default level to debug.
func SetupLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

// New connects the database, storage and inference service and builds the
// domain services. Close releases everything New opened.
func New(settings *conf.Settings, build *buildinfo.Context) (*App, error) {
	central, err := SetupLogging(settings)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings: settings,
		Build:    build,
		Log:      central.Module("app"),
		central:  central,
	}

	a.flushSentry, err = telemetry.InitSentry(settings, build)
	if err != nil {
		// Telemetry is optional.
		a.Log.Warn("sentry initialization failed", logger.Error(err))
		a.flushSentry = func() {}
	}

	if err := a.open(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open() error {
	var err error
	s := a.Settings

	a.DB, err = datastore.Open(&s.Database, a.central.Module("datastore"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	a.Storage, err = storage.New(&s.Storage)
	if err != nil {
		return fmt.Errorf("failed to configure storage: %w", err)
	}

	a.Metrics, err = observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	recorder := a.Metrics.Recorder()

	a.Inference, err = inference.NewModal(&s.Inference, a.central.Module("inference"))
	if err != nil {
		return fmt.Errorf("failed to configure inference client: %w", err)
	}
	a.Inference.HTTPClient().SetAfterResponseHook(a.Metrics.OutboundHook())

	store := a.DB.Store()
	a.Identity = identity.NewService(store.Clients, a.central.Module("identity"))
	a.Uploads = upload.NewService(store, a.Storage, upload.ConfigFromSettings(s), recorder, a.central.Module("upload"))
	a.Detections = detection.NewService(store, a.Storage, a.Inference, detection.ConfigFromSettings(s),
		detection.WithRecorder(recorder),
		detection.WithLogger(a.central.Module("detection")))
	a.Corrections = correction.NewService(store, recorder, a.central.Module("correction"))

	a.Log.Info("services initialized",
		logger.String("version", a.Build.GetVersion()),
		logger.String("database", s.Database.Driver),
		logger.String("storage", a.Storage.Provider()),
		logger.String("model_version", s.Detection.ModelVersion))
	return nil
}

// NewWorker creates the detection worker with its own job queue and makes
// it the scheduler of the detection service. Call it at most once.
func (a *App) NewWorker() (*detection.Worker, error) {
	if a.workerEnabled {
		return nil, errors.NewStd("detection worker already created")
	}

	q := a.Settings.Queue
	queue := jobqueue.NewJobQueueWithOptions(q.Size, q.ArchiveSize)
	if q.JobTimeout > 0 {
		queue.SetJobTimeout(q.JobTimeout)
	}
	queue.SetLogger(a.central.Module("jobqueue"))

	if err := a.Metrics.RegisterQueue(queue); err != nil {
		return nil, err
	}

	a.workerEnabled = true
	return detection.NewWorker(a.Detections, queue, detection.WorkerConfigFromSettings(a.Settings)), nil
}

// NewServer builds the HTTP API on top of the services.
func (a *App) NewServer() (*api.Server, error) {
	return api.New(api.ConfigFromSettings(a.Settings),
		api.WithLogger(a.central.Module("api")),
		api.WithIdentity(a.Identity),
		api.WithUploads(a.Uploads),
		api.WithDetections(a.Detections),
		api.WithCorrections(a.Corrections),
		api.WithMetrics(a.Metrics),
		api.WithBuildInfo(a.Build))
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.Ping(ctx)
}

// Close releases the resources opened by New.
func (a *App) Close() error {
	var errs []error
	if a.Inference != nil {
		a.Inference.HTTPClient().Close()
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.flushSentry != nil {
		a.flushSentry()
	}
	errs = append(errs, a.central.Close())
	return errors.Join(errs...)
}
