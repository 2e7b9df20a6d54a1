package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attendance is one outcome for one (user, day). The composite unique index
// on (user_id, date) backs the one-record-per-day rule at the storage layer;
// inserts that race past the application pre-check fail with a duplicate-key
// error instead of producing a second row.
type Attendance struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:idx_attendance_user_date" json:"userId"`
	SessionID  *uuid.UUID `gorm:"type:char(36);index" json:"sessionId,omitempty"`
	Date       string     `gorm:"size:10;not null;index;uniqueIndex:idx_attendance_user_date" json:"date"`
	Time       string     `gorm:"size:8;not null" json:"time"`
	Status     string     `gorm:"size:20;index;not null" json:"status"`
	Note       string     `gorm:"size:500" json:"note,omitempty"`
	Attachment string     `gorm:"size:512" json:"attachment,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	IPAddress string   `gorm:"size:45" json:"-"`

	// Approval is meaningful only for leave and sick rows.
	Approval string `gorm:"size:20" json:"approval,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Attendance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
