package detection_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/detection"
	"github.com/handscan/handscan/internal/inference"
	"github.com/handscan/handscan/internal/jobqueue"
)

func fastRetry() detection.WorkerConfig {
	return detection.WorkerConfig{
		Retry: jobqueue.RetryConfig{
			Enabled:      true,
			MaxRetries:   100,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Multiplier:   2,
		},
		SweepInterval: time.Hour,
		SweepAge:      time.Hour,
	}
}

func TestWorkerDrivesRunToCompletion(t *testing.T) {
	f := newFixture(t, conf.EmptyResultFail)

	q := jobqueue.NewJobQueue()
	q.SetProcessingInterval(10 * time.Millisecond)
	w := detection.NewWorker(f.svc, q, fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	f.fake.QueueResult("fc-1", &inference.Result{
		Detections: []inference.Box{{Label: "7C", Confidence: 0.93, X2: 10, Y2: 10}},
	})
	det, created := f.trigger(t)
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, err := f.svc.Get(context.Background(), installID, det.ID)
		return err == nil && got.Status == entities.DetectionSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	job, ok := q.JobByKey(detection.JobKey(det.ID))
	require.True(t, ok)
	assert.Equal(t, det.ID, job.Data)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerRetriesUntilResultArrives(t *testing.T) {
	f := newFixture(t, conf.EmptyResultFail)

	q := jobqueue.NewJobQueue()
	q.SetProcessingInterval(10 * time.Millisecond)
	w := detection.NewWorker(f.svc, q, fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	go func() { _ = w.Run(ctx) }()

	det, _ := f.trigger(t)

	require.Eventually(t, func() bool {
		return f.fake.PollCount("fc-1") >= 2
	}, 5*time.Second, 10*time.Millisecond, "the job keeps polling a running detection")

	f.fake.QueueResult("fc-1", &inference.Result{Detections: []inference.Box{}})

	require.Eventually(t, func() bool {
		got, err := f.svc.Get(context.Background(), installID, det.ID)
		return err == nil && got.Status == entities.DetectionFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWorkerScheduleRequiresRunningQueue(t *testing.T) {
	f := newFixture(t, conf.EmptyResultFail)

	w := detection.NewWorker(f.svc, jobqueue.NewJobQueue(), fastRetry())
	err := w.Schedule(uuid.New())
	require.ErrorIs(t, err, jobqueue.ErrQueueStopped)
}

func TestWorkerScheduleIsKeyed(t *testing.T) {
	f := newFixture(t, conf.EmptyResultFail)

	cfg := fastRetry()
	cfg.Retry.InitialDelay = time.Minute
	cfg.Retry.MaxDelay = time.Minute

	q := jobqueue.NewJobQueue()
	q.SetProcessingInterval(10 * time.Millisecond)
	w := detection.NewWorker(f.svc, q, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = q.Stop()
	})

	// Trigger schedules the run; it stays queued while inference is running.
	det, _ := f.trigger(t)
	require.NoError(t, w.Schedule(det.ID))
	require.NoError(t, w.Schedule(det.ID))

	stats := q.GetStats()
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 2, stats.DedupedJobs)
}
