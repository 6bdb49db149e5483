package entities

import (
	"time"

	"github.com/google/uuid"
)

// HandCorrection is an immutable snapshot of tiles confirmed by the user.
// Whether it is the active snapshot is derived from Hand.ActiveHandCorrectionID.
type HandCorrection struct {
	ID              uuid.UUID  `gorm:"type:varchar(36);primaryKey"`
	HandID          uuid.UUID  `gorm:"type:varchar(36);not null;index"`
	HandDetectionID *uuid.UUID `gorm:"type:varchar(36);index"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index"`

	Hand          *Hand          `gorm:"foreignKey:HandID;constraint:OnDelete:CASCADE"`
	HandDetection *HandDetection `gorm:"foreignKey:HandDetectionID;constraint:OnDelete:SET NULL"`
	Tiles         []HandTile     `gorm:"foreignKey:HandCorrectionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (HandCorrection) TableName() string {
	return "hand_corrections"
}

// IsActiveFor reports whether c is the hand's active correction.
func (c *HandCorrection) IsActiveFor(hand *Hand) bool {
	return hand != nil && hand.ActiveHandCorrectionID != nil && *hand.ActiveHandCorrectionID == c.ID
}

// HandTile is one tile of a correction. Duplicate codes are separate rows.
type HandTile struct {
	ID               uint      `gorm:"primaryKey"`
	HandCorrectionID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	TileCode         string    `gorm:"size:4;not null"`
	SortOrder        int       `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (HandTile) TableName() string {
	return "hand_tiles"
}

