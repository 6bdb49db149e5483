package entities

import "time"

// Client is a device install identified by an opaque install id.
type Client struct {
	InstallID  string    `gorm:"primaryKey;size:64"`
	Label      string    `gorm:"size:120"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	LastSeenAt time.Time `gorm:"index"`
}

// TableName returns the table name for GORM.
func (Client) TableName() string {
	return "clients"
}

// Touch records that the client was seen at now.
func (c *Client) Touch(now time.Time) {
	c.LastSeenAt = now
}
