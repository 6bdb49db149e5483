package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DetectionStatus is the lifecycle state of a detection run.
type DetectionStatus string

const (
	DetectionPending   DetectionStatus = "pending"
	DetectionRunning   DetectionStatus = "running"
	DetectionSucceeded DetectionStatus = "succeeded"
	DetectionFailed    DetectionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s DetectionStatus) IsTerminal() bool {
	return s == DetectionSucceeded || s == DetectionFailed
}

// DetectionStatuses lists every status in lifecycle order.
var DetectionStatuses = []DetectionStatus{DetectionPending, DetectionRunning, DetectionSucceeded, DetectionFailed}

// CanTransitionTo reports whether moving from s to next is allowed.
// Transitions are monotonic: pending -> running -> succeeded|failed. A
// pending run may also fail before it ever ran.
func (s DetectionStatus) CanTransitionTo(next DetectionStatus) bool {
	switch s {
	case DetectionPending:
		return next == DetectionRunning || next == DetectionFailed
	case DetectionRunning:
		return next == DetectionSucceeded || next == DetectionFailed
	default:
		return false
	}
}

// SourcesOf returns the statuses that may move to next.
func SourcesOf(next DetectionStatus) []DetectionStatus {
	var from []DetectionStatus
	for _, s := range DetectionStatuses {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// HandDetection is one inference run against a hand photo.
//
// LiveKey holds "<asset id>:<model version>" while the run is pending,
// running or succeeded and is cleared on failure. Its unique index keeps at
// most one live run per asset and model version.
type HandDetection struct {
	ID                uuid.UUID       `gorm:"type:varchar(36);primaryKey"`
	HandID            uuid.UUID       `gorm:"type:varchar(36);not null;index:idx_hand_detections_hand_version"`
	AssetRefID        uuid.UUID       `gorm:"type:varchar(36);not null;index"`
	Status            DetectionStatus `gorm:"size:16;not null;default:pending;index"`
	ModelName         string          `gorm:"size:64;not null"`
	ModelVersion      string          `gorm:"size:32;not null;index:idx_hand_detections_hand_version"`
	CallID            *string         `gorm:"size:128"`
	LiveKey           *string         `gorm:"size:100;uniqueIndex"`
	ConfidenceOverall *float64        `gorm:"type:decimal(5,4)"`
	InferenceTimeMs   *int64
	RawResult         datatypes.JSON
	ErrorCode         string    `gorm:"size:100"`
	ErrorMessage      string    `gorm:"size:1000"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`

	Hand     *Hand           `gorm:"foreignKey:HandID;constraint:OnDelete:CASCADE"`
	AssetRef *AssetRef       `gorm:"foreignKey:AssetRefID;constraint:OnDelete:CASCADE"`
	Tiles    []DetectionTile `gorm:"foreignKey:HandDetectionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (HandDetection) TableName() string {
	return "hand_detections"
}

// LiveKeyFor builds the live-run key for an asset and model version.
func LiveKeyFor(assetID uuid.UUID, modelVersion string) string {
	return assetID.String() + ":" + modelVersion
}

// DetectionTile is a bounding box kept after thresholding and suppression.
type DetectionTile struct {
	ID              uint      `gorm:"primaryKey"`
	HandDetectionID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	TileCode        string    `gorm:"size:4;not null"`
	X1              int       `gorm:"not null"`
	Y1              int       `gorm:"not null"`
	X2              int       `gorm:"not null"`
	Y2              int       `gorm:"not null"`
	Confidence      float64   `gorm:"type:decimal(5,4);not null"`
}

// TableName returns the table name for GORM.
func (DetectionTile) TableName() string {
	return "detection_tiles"
}

