package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UploadSessionStatus is the state of an upload session.
type UploadSessionStatus string

const (
	UploadSessionCreated   UploadSessionStatus = "created"
	UploadSessionPresigned UploadSessionStatus = "presigned"
	UploadSessionCompleted UploadSessionStatus = "completed"
	UploadSessionFailed    UploadSessionStatus = "failed"
)

// UploadPurpose classifies why a file was uploaded.
type UploadPurpose string

const (
	PurposeHandPhoto  UploadPurpose = "hand_photo"
	PurposeDetectTest UploadPurpose = "detect_test"
	PurposeOther      UploadPurpose = "other"
)

// IsValid reports whether p is a known purpose.
func (p UploadPurpose) IsValid() bool {
	switch p {
	case PurposeHandPhoto, PurposeDetectTest, PurposeOther:
		return true
	}
	return false
}

// UploadSession tracks one presigned upload by a client.
type UploadSession struct {
	ID        uuid.UUID           `gorm:"type:varchar(36);primaryKey"`
	ClientID  string              `gorm:"size:64;not null;index"`
	Status    UploadSessionStatus `gorm:"size:16;not null;default:created"`
	Purpose   UploadPurpose       `gorm:"size:32;not null"`
	CreatedAt time.Time           `gorm:"autoCreateTime"`
	UpdatedAt time.Time           `gorm:"autoUpdateTime"`

	Client *Client `gorm:"foreignKey:ClientID;references:InstallID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (UploadSession) TableName() string {
	return "upload_sessions"
}

// Asset is a stored object. It becomes active once the upload is confirmed
// present in storage and never reverts to inactive.
type Asset struct {
	ID              uuid.UUID      `gorm:"type:varchar(36);primaryKey"`
	UploadSessionID *uuid.UUID     `gorm:"type:varchar(36);index"`
	StorageProvider string         `gorm:"size:16;not null"`
	StorageKey      string         `gorm:"size:512;not null;uniqueIndex"`
	MimeType        string         `gorm:"size:64;not null"`
	ByteSize        int64          `gorm:"not null;default:0"`
	Checksum        string         `gorm:"size:128"`
	Width           *int
	Height          *int
	ExifData        datatypes.JSON
	ExifCapturedAt  *time.Time
	IsActive        bool      `gorm:"not null;default:false;index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`

	UploadSession *UploadSession `gorm:"foreignKey:UploadSessionID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM.
func (Asset) TableName() string {
	return "assets"
}

// OwnerInstallID returns the install id of the client that uploaded the
// asset, or "" when the session is not loaded or missing.
func (a *Asset) OwnerInstallID() string {
	if a == nil || a.UploadSession == nil {
		return ""
	}
	return a.UploadSession.ClientID
}

// AssetRole describes how an asset is used by its owner.
type AssetRole string

const (
	RoleHandPhoto   AssetRole = "hand_photo"
	RoleHandCropped AssetRole = "hand_cropped"
	RoleAvatar      AssetRole = "avatar"
)

// OwnerKind discriminates the entity an AssetRef points at.
type OwnerKind string

const (
	OwnerHand OwnerKind = "hand"
)

// AssetRef attaches an asset to an owner. One asset may be referenced by
// several owners; a detection reaches its image through exactly one ref
// with role hand_photo owned by a hand.
type AssetRef struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	AssetID    uuid.UUID `gorm:"type:varchar(36);not null;index:idx_asset_refs_asset_role"`
	OwnerKind  OwnerKind `gorm:"size:32;not null;index:idx_asset_refs_owner"`
	OwnerID    uuid.UUID `gorm:"type:varchar(36);not null;index:idx_asset_refs_owner"`
	Role       AssetRole `gorm:"size:32;not null;index:idx_asset_refs_asset_role"`
	Ordering   int       `gorm:"not null;default:0"`
	CapturedAt time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	Asset *Asset `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (AssetRef) TableName() string {
	return "asset_refs"
}
