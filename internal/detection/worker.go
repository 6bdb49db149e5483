package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/jobqueue"
	"github.com/handscan/handscan/internal/logger"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepAge      = 5 * time.Minute
	queueStopTimeout     = 30 * time.Second
)

// WorkerConfig controls retries and the stale sweep.
type WorkerConfig struct {
	Retry         jobqueue.RetryConfig
	SweepInterval time.Duration
	SweepAge      time.Duration
}

// WorkerConfigFromSettings extracts the worker configuration.
func WorkerConfigFromSettings(settings *conf.Settings) WorkerConfig {
	q := settings.Queue
	return WorkerConfig{
		Retry: jobqueue.RetryConfig{
			Enabled:      q.MaxRetries > 0,
			MaxRetries:   q.MaxRetries,
			InitialDelay: q.InitialDelay,
			MaxDelay:     q.MaxDelay,
			Multiplier:   q.Multiplier,
		},
		SweepInterval: settings.Detection.SweepInterval,
		SweepAge:      settings.Detection.SweepAge,
	}
}

// Worker drives runs to completion through a job queue. Each run is one
// keyed job, so scheduling a run that is already queued is a no-op.
type Worker struct {
	service *Service
	queue   *jobqueue.JobQueue
	cfg     WorkerConfig
	action  jobqueue.Action
	log     logger.Logger
}

// NewWorker creates a Worker and registers it as the service's scheduler.
func NewWorker(service *Service, queue *jobqueue.JobQueue, cfg WorkerConfig) *Worker {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SweepAge <= 0 {
		cfg.SweepAge = defaultSweepAge
	}

	w := &Worker{
		service: service,
		queue:   queue,
		cfg:     cfg,
		log:     service.log.Module("worker"),
	}
	w.action = jobqueue.ActionFunc{
		Name: "process detection",
		Fn:   w.process,
	}
	service.SetScheduler(w)
	return w
}

// JobKey is the queue key of a run.
func JobKey(id uuid.UUID) string {
	return "detection:" + id.String()
}

// Schedule enqueues a run unless it is already queued.
func (w *Worker) Schedule(id uuid.UUID) error {
	_, err := w.queue.EnqueueKeyed(JobKey(id), w.action, id, w.cfg.Retry)
	if err != nil {
		return fmt.Errorf("enqueue detection %s: %w", id, err)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, data any) error {
	id, ok := data.(uuid.UUID)
	if !ok {
		return jobqueue.Permanent(fmt.Errorf("unexpected job data %T", data))
	}
	return w.service.Process(ctx, id)
}

// Run starts the queue and sweeps stale runs every SweepInterval until ctx
// is cancelled, then stops the queue and waits for running jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.queue.Start(ctx)
	w.log.Info("detection worker started",
		logger.Duration("sweep_interval", w.cfg.SweepInterval),
		logger.Duration("sweep_age", w.cfg.SweepAge))

	w.sweep(ctx)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("detection worker stopping")
			if err := w.queue.StopWithTimeout(queueStopTimeout); err != nil {
				return fmt.Errorf("stop detection queue: %w", err)
			}
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if _, err := w.service.Sweep(ctx, w.cfg.SweepAge); err != nil && ctx.Err() == nil {
		w.log.Error("detection sweep failed", logger.Error(err))
	}
}
