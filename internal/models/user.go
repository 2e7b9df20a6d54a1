package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	NISN         string     `gorm:"uniqueIndex;size:20;not null" json:"nisn"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         string     `gorm:"size:20;index;not null" json:"role"`
	Class        string     `gorm:"size:10;index" json:"class"`
	Email        string     `gorm:"size:255" json:"email,omitempty"`
	Phone        string     `gorm:"size:20" json:"phone,omitempty"`
	Active       bool       `gorm:"default:true" json:"active"`
	DeviceID     string     `gorm:"size:128" json:"-"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
