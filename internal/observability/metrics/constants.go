// Package metrics provides constants used across metric definitions.
package metrics

// Operation names passed to Recorder.
const (
	// OpTrigger is a detection trigger request.
	OpTrigger = "detection_trigger"
	// OpDispatch submits a pending detection to inference.
	OpDispatch = "detection_dispatch"
	// OpPoll asks inference for the result of a running detection.
	OpPoll = "detection_poll"
	// OpIngest applies an inference result to a detection.
	OpIngest = "detection_ingest"
	// OpSweep re-enqueues stale detections.
	OpSweep = "detection_sweep"
	// OpCorrectionCreate stores a confirmed tile snapshot.
	OpCorrectionCreate = "correction_create"
	// OpUploadPresign issues a presigned upload URL.
	OpUploadPresign = "upload_presign"
	// OpUploadComplete confirms an upload.
	OpUploadComplete = "upload_complete"
	// OpUploadInspect reads image dimensions after upload.
	OpUploadInspect = "upload_inspect"
)

// Status values passed to RecordOperation.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCreated   = "created"
	StatusReused    = "reused"
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Histogram bucket parameters.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100B is the starting bucket for response size histograms.
	BucketStart100B = 100.0

	BucketFactor2  = 2
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount12 = 12
)
