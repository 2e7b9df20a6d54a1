package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is one scheduled attendance window for a (subject, class) pair.
// Date is a civil date (YYYY-MM-DD); StartTime and EndTime are time-of-day
// only (HH:MM:SS). A window whose start is greater than its end spans
// midnight into the following civil day; that property is derived, never
// stored.
type Session struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	SubjectID uuid.UUID `gorm:"type:char(36);index;not null" json:"subjectId"`
	Subject   *Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Class     string    `gorm:"size:10;index;not null" json:"class"`
	Date      string    `gorm:"size:10;index;not null" json:"date"`
	StartTime string    `gorm:"size:8;not null" json:"startTime"`
	EndTime   string    `gorm:"size:8;not null" json:"endTime"`
	Code      string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Active    bool      `gorm:"default:true" json:"active"`

	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters *float64 `json:"radiusMeters,omitempty"`
	LocationName string   `gorm:"size:255" json:"locationName,omitempty"`

	CreatedBy uuid.UUID `gorm:"type:char(36);index" json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Geofenced reports whether the session constrains scans to a radius around
// a declared location. All three fields must be present.
func (s *Session) Geofenced() bool {
	return s.Latitude != nil && s.Longitude != nil && s.RadiusMeters != nil
}
