package jobqueue

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/logger"
)

const (
	defaultProcessingInterval = time.Second
	defaultJobTimeout         = 30 * time.Second
)

// JobQueue manages a queue of jobs that can be retried
type JobQueue struct {
	jobs            []*Job
	archivedJobs    []*Job
	mu              sync.Mutex
	stats           JobStats
	jobCounter      int
	runningJobs     sync.WaitGroup
	isRunning       bool
	maxArchivedJobs int
	maxJobs         int

	processCancel      context.CancelFunc
	processDone        chan struct{}
	processingInterval time.Duration
	jobTimeout         time.Duration
	wake               chan struct{}
	log                logger.Logger
}

// NewJobQueue creates a new job queue with default settings
func NewJobQueue() *JobQueue {
	return NewJobQueueWithOptions(1000, 100)
}

// NewJobQueueWithOptions creates a job queue holding at most maxJobs active
// jobs and keeping the last maxArchivedJobs finished ones.
func NewJobQueueWithOptions(maxJobs, maxArchivedJobs int) *JobQueue {
	return &JobQueue{
		maxArchivedJobs:    maxArchivedJobs,
		maxJobs:            maxJobs,
		processingInterval: defaultProcessingInterval,
		jobTimeout:         defaultJobTimeout,
		wake:               make(chan struct{}, 1),
		log:                logger.Global().Module("jobqueue"),
		stats: JobStats{
			ActionStats: make(map[string]ActionStats),
		},
	}
}

// SetProcessingInterval sets how often due jobs are scanned.
func (q *JobQueue) SetProcessingInterval(interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processingInterval = interval
}

// SetJobTimeout bounds a single execution of an action.
func (q *JobQueue) SetJobTimeout(timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobTimeout = timeout
}

// SetLogger replaces the queue logger.
func (q *JobQueue) SetLogger(log logger.Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.log = log
}

// Start starts processing. Cancelling ctx stops the processing loop.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return
	}
	q.isRunning = true

	processCtx, cancel := context.WithCancel(ctx)
	q.processCancel = cancel
	q.processDone = make(chan struct{})

	go q.processJobs(processCtx, q.processDone)
}

// Stop stops the job queue processing
func (q *JobQueue) Stop() error {
	return q.StopWithTimeout(10 * time.Second)
}

// StopWithTimeout stops the loop and waits for running jobs to finish.
func (q *JobQueue) StopWithTimeout(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.processCancel()
	q.processCancel = nil
	done := q.processDone
	q.mu.Unlock()

	c := make(chan struct{})
	go func() {
		<-done
		q.runningJobs.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for jobs to complete after %v", timeout)
	}
}

// Enqueue adds a job to the queue
func (q *JobQueue) Enqueue(action Action, data any, config RetryConfig) (*Job, error) {
	return q.EnqueueKeyed("", action, data, config)
}

// EnqueueKeyed adds a job unless an unfinished job with the same key exists,
// in which case that job is returned.
func (q *JobQueue) EnqueueKeyed(key string, action Action, data any, config RetryConfig) (*Job, error) {
	if action == nil {
		return nil, ErrNilAction
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return nil, ErrQueueStopped
	}

	if key != "" {
		for _, job := range q.jobs {
			if job.Key == key && job.Status != JobStatusCompleted && job.Status != JobStatusFailed {
				q.stats.DedupedJobs++
				return job, nil
			}
		}
	}

	if q.activeJobsLocked() >= q.maxJobs && !q.dropOldestPendingJobLocked() {
		q.stats.DroppedJobs++
		stats := q.stats.ActionStats[action.Description()]
		stats.Description = action.Description()
		stats.Dropped++
		q.stats.ActionStats[action.Description()] = stats
		return nil, fmt.Errorf("%w: maximum queue size (%d) reached", ErrQueueFull, q.maxJobs)
	}

	maxAttempts := 1
	if config.Enabled {
		maxAttempts = config.MaxRetries + 1
	}

	q.jobCounter++
	now := time.Now()
	job := &Job{
		ID:          fmt.Sprintf("job-%d", q.jobCounter),
		Key:         key,
		Action:      action,
		Data:        data,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		NextRetryAt: now,
		Status:      JobStatusPending,
		Config:      config,
	}
	q.jobs = append(q.jobs, job)
	q.stats.TotalJobs++

	q.log.Debug("job enqueued",
		logger.String("job_id", job.ID),
		logger.String("key", key),
		logger.String("action", action.Description()))

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return job, nil
}

// activeJobsLocked counts jobs not yet finished. Caller holds q.mu.
func (q *JobQueue) activeJobsLocked() int {
	n := 0
	for _, job := range q.jobs {
		if job.Status != JobStatusCompleted && job.Status != JobStatusFailed {
			n++
		}
	}
	return n
}

// dropOldestPendingJobLocked removes the oldest job that has not started.
// Caller holds q.mu.
func (q *JobQueue) dropOldestPendingJobLocked() bool {
	oldestIdx := -1
	for i, job := range q.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if oldestIdx == -1 || job.CreatedAt.Before(q.jobs[oldestIdx].CreatedAt) {
			oldestIdx = i
		}
	}
	if oldestIdx == -1 {
		return false
	}

	dropped := q.jobs[oldestIdx]
	q.jobs = append(q.jobs[:oldestIdx], q.jobs[oldestIdx+1:]...)
	q.stats.DroppedJobs++
	stats := q.stats.ActionStats[dropped.Action.Description()]
	stats.Dropped++
	q.stats.ActionStats[dropped.Action.Description()] = stats

	q.log.Warn("dropped oldest pending job to make room",
		logger.String("job_id", dropped.ID),
		logger.String("key", dropped.Key))
	return true
}

func (q *JobQueue) processJobs(ctx context.Context, done chan struct{}) {
	defer close(done)

	q.mu.Lock()
	interval := q.processingInterval
	q.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.log.Debug("job queue processing stopped", logger.Error(ctx.Err()))
			return
		case <-ticker.C:
		case <-q.wake:
		}
		q.cleanupStaleJobs()
		q.processDueJobs(ctx)
	}
}

// cleanupStaleJobs moves completed and failed jobs to the archive.
func (q *JobQueue) cleanupStaleJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	active := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			q.archivedJobs = append(q.archivedJobs, job)
			q.stats.StaleJobs++
			continue
		}
		active = append(active, job)
	}
	clear(q.jobs[len(active):])
	q.jobs = active

	if excess := len(q.archivedJobs) - q.maxArchivedJobs; excess > 0 {
		q.archivedJobs = q.archivedJobs[excess:]
	}
	q.stats.ArchivedJobs = len(q.archivedJobs)
}

// calculateBackoffDelay returns InitialDelay * Multiplier^attempt with
// +-10% jitter, capped at MaxDelay.
func calculateBackoffDelay(config RetryConfig, attemptNum int) time.Duration {
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	backoff := float64(config.InitialDelay) * math.Pow(multiplier, float64(attemptNum-1))
	backoff *= 0.9 + 0.2*rand.Float64() //nolint:gosec // jitter only

	if config.MaxDelay > 0 && backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}
	return time.Duration(backoff)
}

func (q *JobQueue) processDueJobs(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()
	var due []*Job
	now := time.Now()
	for _, job := range q.jobs {
		if (job.Status == JobStatusPending || job.Status == JobStatusRetrying) && !job.NextRetryAt.After(now) {
			job.Status = JobStatusRunning
			due = append(due, job)
		}
	}
	timeout := q.jobTimeout
	q.runningJobs.Add(len(due))
	q.mu.Unlock()

	for _, job := range due {
		go func(j *Job) {
			defer q.runningJobs.Done()
			q.executeJob(ctx, j, timeout)
		}(job)
	}
}

// executeJob runs one attempt and schedules a retry on failure.
func (q *JobQueue) executeJob(ctx context.Context, job *Job, timeout time.Duration) {
	q.mu.Lock()
	job.Attempts++
	attempt := job.Attempts
	if attempt > 1 {
		q.stats.RetryAttempts++
	}
	q.mu.Unlock()

	desc := job.Action.Description()
	log := q.log.With(
		logger.String("job_id", job.ID),
		logger.String("action", desc),
		logger.Int("attempt", attempt))

	// Stopping the queue does not cancel running jobs; Stop waits for them.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- errors.Newf("job execution panicked: %v", r).
					Component("jobqueue").
					Category(errors.CategoryJobQueue).
					Build()
			}
		}()
		result <- job.Action.Execute(execCtx, job.Data)
	}()

	var err error
	select {
	case err = <-result:
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("job execution timed out after %v: %w", timeout, execCtx.Err())
		} else {
			err = fmt.Errorf("job execution was cancelled: %w", execCtx.Err())
		}
	}
	duration := time.Since(start)

	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats.ActionStats[desc]
	stats.Description = desc
	stats.record(duration, err, time.Now())
	defer func() { q.stats.ActionStats[desc] = stats }()

	if err == nil {
		job.Status = JobStatusCompleted
		job.LastError = nil
		q.stats.SuccessfulJobs++
		stats.Successful++
		if attempt > 1 {
			log.Info("job succeeded after retries", logger.Duration("duration", duration))
		}
		return
	}

	job.LastError = err
	if ctx.Err() != nil {
		// Shutting down: leave the job for the next Start.
		job.Status = JobStatusRetrying
		job.Attempts--
		return
	}

	if IsPermanent(err) || attempt >= job.MaxAttempts {
		job.Status = JobStatusFailed
		q.stats.FailedJobs++
		stats.Failed++
		log.Warn("job failed permanently", logger.Error(err))
		return
	}

	job.Status = JobStatusRetrying
	stats.Retried++
	delay := calculateBackoffDelay(job.Config, attempt)
	job.NextRetryAt = time.Now().Add(delay)
	log.Debug("job will retry",
		logger.Duration("delay", delay),
		logger.Int("max_attempts", job.MaxAttempts),
		logger.Error(err))
}

// GetStats returns a snapshot of the current job statistics
func (q *JobQueue) GetStats() JobStatsSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := JobStatsSnapshot{
		JobStats:     q.stats.clone(),
		MaxQueueSize: q.maxJobs,
	}
	for _, job := range q.jobs {
		switch job.Status {
		case JobStatusPending, JobStatusRetrying:
			snapshot.PendingJobs++
		case JobStatusRunning:
			snapshot.RunningJobs++
		}
	}
	if q.maxJobs > 0 {
		snapshot.QueueUtilization = float64(snapshot.PendingJobs+snapshot.RunningJobs) / float64(q.maxJobs) * 100
	}
	return snapshot
}

// ProcessImmediately runs one scan without waiting for the ticker.
func (q *JobQueue) ProcessImmediately(ctx context.Context) {
	q.cleanupStaleJobs()
	q.processDueJobs(ctx)
}

// Wait blocks until no job is running.
func (q *JobQueue) Wait() {
	q.runningJobs.Wait()
}

// JobByKey returns the most recent job with key, including archived ones.
func (q *JobQueue) JobByKey(key string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.jobs) - 1; i >= 0; i-- {
		if q.jobs[i].Key == key {
			return *q.jobs[i], true
		}
	}
	for i := len(q.archivedJobs) - 1; i >= 0; i-- {
		if q.archivedJobs[i].Key == key {
			return *q.archivedJobs[i], true
		}
	}
	return Job{}, false
}
