// Package inference talks to the remote tile detection service.
package inference

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/handscan/handscan/internal/conf"
)

// Box is one raw detection returned by the model.
type Box struct {
	Label      string  `json:"tile_code"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Result is the outcome of a Poll. Pending means the run is not finished
// and every other field is empty.
type Result struct {
	Pending         bool   `json:"-"`
	Detections      []Box  `json:"detections"`
	ModelVersion    string `json:"model_version,omitempty"`
	InferenceTimeMs *int64 `json:"inference_time_ms,omitempty"`

	// Raw is the undecoded response body.
	Raw json.RawMessage `json:"-"`
}

// PendingResult is returned by Poll while the run is in progress.
var PendingResult = &Result{Pending: true}

// Client submits images for detection and polls for results.
type Client interface {
	// Submit starts a run on imageURL and returns the remote call id.
	Submit(ctx context.Context, imageURL, modelVersion string) (string, error)

	// Poll returns PendingResult while the run is in progress.
	Poll(ctx context.Context, callID string) (*Result, error)
}

// IsSupportedVersion reports whether v is a model version the detector accepts.
func IsSupportedVersion(v string) bool {
	return slices.Contains(conf.SupportedModelVersions, v)
}
