// Package jobqueue is an in-process queue with retry and exponential backoff.
// Delivery is at-least-once: an action may run again after a failure, a
// timeout or a panic, so actions must be idempotent.
package jobqueue

import (
	"context"
	"time"

	"github.com/handscan/handscan/internal/errors"
)

// Common errors that can be returned by job queue operations
var (
	ErrNilAction    = errors.NewStd("cannot enqueue nil action")
	ErrQueueStopped = errors.NewStd("job queue has been stopped")
	ErrQueueFull    = errors.NewStd("job queue is full")
)

// RetryConfig holds the retry behavior of a job.
type RetryConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Action is the work a job performs.
type Action interface {
	Execute(ctx context.Context, data any) error
	Description() string
}

// ActionFunc adapts a function to Action.
type ActionFunc struct {
	Name string
	Fn   func(ctx context.Context, data any) error
}

func (a ActionFunc) Execute(ctx context.Context, data any) error { return a.Fn(ctx, data) }
func (a ActionFunc) Description() string                          { return a.Name }

// JobStatus represents the current status of a job in the queue
type JobStatus int

const (
	JobStatusPending JobStatus = iota
	JobStatusRunning
	JobStatusCompleted
	// JobStatusFailed is final; the job will not be retried.
	JobStatusFailed
	JobStatusRetrying
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "Pending"
	case JobStatusRunning:
		return "Running"
	case JobStatusCompleted:
		return "Completed"
	case JobStatusFailed:
		return "Failed"
	case JobStatusRetrying:
		return "Retrying"
	default:
		return "Unknown"
	}
}

// permanentError stops retries for the wrapped error.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
