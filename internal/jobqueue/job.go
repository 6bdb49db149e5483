package jobqueue

import (
	"encoding/json"
	"maps"
	"time"
)

// MaxMessageLength bounds error messages kept in statistics.
const MaxMessageLength = 500

// Job represents a unit of work in the job queue
type Job struct {
	ID          string
	Key         string // dedup key; empty disables deduplication
	Action      Action
	Data        any
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	NextRetryAt time.Time
	Status      JobStatus
	LastError   error
	Config      RetryConfig
}

// JobStats tracks statistics about job processing
type JobStats struct {
	TotalJobs      int
	SuccessfulJobs int
	FailedJobs     int
	StaleJobs      int
	ArchivedJobs   int
	DroppedJobs    int
	DedupedJobs    int
	RetryAttempts  int
	ActionStats    map[string]ActionStats // keyed by action description
}

// JobStatsSnapshot is a point-in-time copy of the queue statistics.
type JobStatsSnapshot struct {
	JobStats

	PendingJobs      int
	RunningJobs      int
	MaxQueueSize     int
	QueueUtilization float64 // percent
}

// ActionStats tracks statistics for one action.
type ActionStats struct {
	Description string

	Attempted  int // executions, retries included
	Successful int
	Failed     int
	Retried    int
	Dropped    int

	TotalDuration      time.Duration
	AverageDuration    time.Duration
	MinDuration        time.Duration
	MaxDuration        time.Duration
	LastExecutionTime  time.Time
	LastSuccessfulTime time.Time
	LastFailedTime     time.Time
	LastErrorMessage   string
}

// record adds one execution to the action statistics.
func (s *ActionStats) record(duration time.Duration, err error, now time.Time) {
	s.Attempted++
	s.TotalDuration += duration
	if s.MinDuration == 0 || duration < s.MinDuration {
		s.MinDuration = duration
	}
	if duration > s.MaxDuration {
		s.MaxDuration = duration
	}
	s.AverageDuration = s.TotalDuration / time.Duration(s.Attempted)
	s.LastExecutionTime = now

	if err == nil {
		s.LastSuccessfulTime = now
		return
	}
	s.LastFailedTime = now
	msg := []rune(err.Error())
	if len(msg) > MaxMessageLength {
		msg = append(msg[:MaxMessageLength], []rune("... [truncated]")...)
	}
	s.LastErrorMessage = string(msg)
}

func (s JobStats) clone() JobStats {
	out := s
	out.ActionStats = maps.Clone(s.ActionStats)
	return out
}

// ToJSON renders the snapshot for the stats endpoint.
func (s *JobStatsSnapshot) ToJSON() ([]byte, error) {
	actions := make(map[string]any, len(s.ActionStats))
	for name, stats := range s.ActionStats {
		entry := map[string]any{
			"attempted":       stats.Attempted,
			"successful":      stats.Successful,
			"failed":          stats.Failed,
			"retried":         stats.Retried,
			"dropped":         stats.Dropped,
			"averageDuration": stats.AverageDuration.String(),
			"maxDuration":     stats.MaxDuration.String(),
		}
		if stats.LastErrorMessage != "" {
			entry["lastError"] = stats.LastErrorMessage
		}
		if !stats.LastExecutionTime.IsZero() {
			entry["lastExecution"] = stats.LastExecutionTime.Format(time.RFC3339)
		}
		actions[name] = entry
	}

	return json.Marshal(map[string]any{
		"queue": map[string]any{
			"total":         s.TotalJobs,
			"successful":    s.SuccessfulJobs,
			"failed":        s.FailedJobs,
			"archived":      s.ArchivedJobs,
			"dropped":       s.DroppedJobs,
			"deduped":       s.DedupedJobs,
			"retryAttempts": s.RetryAttempts,
			"pending":       s.PendingJobs,
			"running":       s.RunningJobs,
			"maxSize":       s.MaxQueueSize,
			"utilization":   s.QueueUtilization,
		},
		"actions": actions,
	})
}
