package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/handscan/handscan/internal/correction"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/upload"
)

// ClientResponse describes a registered client install.
type ClientResponse struct {
	InstallID  string    `json:"install_id"`
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func newClientResponse(c *entities.Client) ClientResponse {
	return ClientResponse{
		InstallID:  c.InstallID,
		Label:      c.Label,
		CreatedAt:  c.CreatedAt,
		LastSeenAt: c.LastSeenAt,
	}
}

// AssetResponse describes an uploaded asset.
type AssetResponse struct {
	ID              uuid.UUID  `json:"id"`
	UploadSessionID *uuid.UUID `json:"upload_session_id"`
	StorageKey      string     `json:"storage_key"`
	MimeType        string     `json:"mime_type"`
	IsActive        bool       `json:"is_active"`
	ByteSize        int64      `json:"byte_size"`
	Checksum        string     `json:"checksum"`
	Width           *int       `json:"width,omitempty"`
	Height          *int       `json:"height,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newAssetResponse(a *entities.Asset) AssetResponse {
	return AssetResponse{
		ID:              a.ID,
		UploadSessionID: a.UploadSessionID,
		StorageKey:      a.StorageKey,
		MimeType:        a.MimeType,
		IsActive:        a.IsActive,
		ByteSize:        a.ByteSize,
		Checksum:        a.Checksum,
		Width:           a.Width,
		Height:          a.Height,
		CreatedAt:       a.CreatedAt,
	}
}

// PresignResponse is an inactive asset plus the URL to upload it to.
type PresignResponse struct {
	AssetResponse
	PresignedURL string    `json:"presigned_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newPresignResponse(a *entities.Asset, p *upload.Presigned) PresignResponse {
	return PresignResponse{
		AssetResponse: newAssetResponse(a),
		PresignedURL:  p.UploadURL,
		ExpiresAt:     p.ExpiresAt,
	}
}

// TriggerResponse is returned when a detection is requested.
type TriggerResponse struct {
	HandID          uuid.UUID                `json:"hand_id"`
	AssetRefID      uuid.UUID                `json:"asset_ref_id"`
	HandDetectionID uuid.UUID                `json:"hand_detection_id"`
	Status          entities.DetectionStatus `json:"status"`
}

// DetectionTileResponse is one detected tile and its bounding box.
type DetectionTileResponse struct {
	TileCode   string  `json:"tile_code"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}

// DetectionResponse is the status and result of a detection run.
type DetectionResponse struct {
	HandDetectionID   uuid.UUID                `json:"hand_detection_id"`
	HandID            uuid.UUID                `json:"hand_id"`
	Status            entities.DetectionStatus `json:"status"`
	ModelName         string                   `json:"model_name"`
	ModelVersion      string                   `json:"model_version"`
	ConfidenceOverall *float64                 `json:"confidence_overall"`
	InferenceTimeMs   *int64                   `json:"inference_time_ms,omitempty"`
	Tiles             []DetectionTileResponse  `json:"tiles"`
	ErrorCode         string                   `json:"error_code"`
	ErrorMessage      string                   `json:"error_message"`
	CreatedAt         time.Time                `json:"created_at"`
}

func newDetectionResponse(d *entities.HandDetection) DetectionResponse {
	tiles := make([]DetectionTileResponse, 0, len(d.Tiles))
	for _, t := range d.Tiles {
		tiles = append(tiles, DetectionTileResponse{
			TileCode:   t.TileCode,
			X1:         t.X1,
			Y1:         t.Y1,
			X2:         t.X2,
			Y2:         t.Y2,
			Confidence: t.Confidence,
		})
	}
	return DetectionResponse{
		HandDetectionID:   d.ID,
		HandID:            d.HandID,
		Status:            d.Status,
		ModelName:         d.ModelName,
		ModelVersion:      d.ModelVersion,
		ConfidenceOverall: d.ConfidenceOverall,
		InferenceTimeMs:   d.InferenceTimeMs,
		Tiles:             tiles,
		ErrorCode:         d.ErrorCode,
		ErrorMessage:      d.ErrorMessage,
		CreatedAt:         d.CreatedAt,
	}
}

// HandTileResponse is one tile of a corrected hand.
type HandTileResponse struct {
	TileCode  string `json:"tile_code"`
	SortOrder int    `json:"sort_order"`
}

// CorrectionResponse is a user-confirmed hand.
type CorrectionResponse struct {
	ID          uuid.UUID          `json:"id"`
	HandID      uuid.UUID          `json:"hand_id"`
	DetectionID *uuid.UUID         `json:"detection_id"`
	Tiles       []HandTileResponse `json:"tiles"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
}

func newCorrectionResponse(c *entities.HandCorrection) CorrectionResponse {
	tiles := make([]HandTileResponse, 0, len(c.Tiles))
	for _, t := range c.Tiles {
		tiles = append(tiles, HandTileResponse{TileCode: t.TileCode, SortOrder: t.SortOrder})
	}
	return CorrectionResponse{
		ID:          c.ID,
		HandID:      c.HandID,
		DetectionID: c.HandDetectionID,
		Tiles:       tiles,
		IsActive:    correction.IsActive(c.Hand, c),
		CreatedAt:   c.CreatedAt,
	}
}
