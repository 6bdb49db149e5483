// Package metrics provides Prometheus metrics for handscan.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Services depend on it rather than on concrete collectors so tests can
// pass a TestRecorder or nothing at all.
type Recorder interface {
	// RecordOperation records an operation with its outcome
	// (e.g. "detection_trigger", "created").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its stable code or category.
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}

var _ Recorder = NoopRecorder{}
