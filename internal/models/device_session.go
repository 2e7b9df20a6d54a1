package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// One row per (user, device) pairing. A fresh login deactivates every other
// active row for the user before inserting or reviving its own.
type DeviceSession struct {
	ID           uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:char(36);index;not null" json:"userId"`
	DeviceID     string     `gorm:"size:128;index;not null" json:"deviceId"`
	DeviceName   string     `gorm:"size:255" json:"deviceName"`
	Platform     string     `gorm:"size:50" json:"platform"`
	Browser      string     `gorm:"size:50" json:"browser"`
	UserAgent    string     `gorm:"size:512" json:"userAgent"`
	IPAddress    string     `gorm:"size:45" json:"ipAddress"`
	Active       bool       `gorm:"index" json:"active"`
	LoginTime    time.Time  `json:"loginTime"`
	LastActivity time.Time  `json:"lastActivity"`
	LogoutTime   *time.Time `json:"logoutTime,omitempty"`
	LogoutReason string     `gorm:"size:255" json:"logoutReason,omitempty"`
}

func (s *DeviceSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
