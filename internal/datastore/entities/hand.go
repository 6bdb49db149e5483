package entities

import (
	"time"

	"github.com/google/uuid"
)

// HandSource records how a hand entered the system.
type HandSource string

const (
	SourceCamera HandSource = "camera"
	SourceManual HandSource = "manual"
	SourceImport HandSource = "import"
	SourceOther  HandSource = "other"
)

// IsValid reports whether s is a known source.
func (s HandSource) IsValid() bool {
	switch s {
	case SourceCamera, SourceManual, SourceImport, SourceOther:
		return true
	}
	return false
}

// Hand is one recording of a physical hand of tiles. ActiveHandCorrectionID
// points at the latest confirmed snapshot and is only moved by the
// correction builder.
type Hand struct {
	ID                     uuid.UUID  `gorm:"type:varchar(36);primaryKey"`
	ClientID               string     `gorm:"size:64;not null;index"`
	Source                 HandSource `gorm:"size:16;not null;default:camera"`
	ActiveHandCorrectionID *uuid.UUID `gorm:"type:varchar(36)"`
	CreatedAt              time.Time  `gorm:"autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime"`

	Client *Client `gorm:"foreignKey:ClientID;references:InstallID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (Hand) TableName() string {
	return "hands"
}

// All returns every entity in migration order.
func All() []any {
	return []any{
		&Client{},
		&UploadSession{},
		&Asset{},
		&AssetRef{},
		&Hand{},
		&HandDetection{},
		&DetectionTile{},
		&HandCorrection{},
		&HandTile{},
	}
}
