// Package store backs the attendance engine's interfaces with gorm.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/models"
)

type SessionStore struct {
	DB *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore { return &SessionStore{DB: db} }

func (s *SessionStore) FindByCode(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	err := s.DB.WithContext(ctx).Preload("Subject").Where("code = ?", code).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger { return &Ledger{DB: db} }

func (l *Ledger) HasRecordOn(ctx context.Context, userID uuid.UUID, date string) (bool, error) {
	var count int64
	err := l.DB.WithContext(ctx).Model(&models.Attendance{}).
		Where("user_id = ? AND date = ?", userID, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (l *Ledger) Insert(ctx context.Context, rec *models.Attendance) error {
	err := l.DB.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return attendance.ErrDuplicateRecord
	}
	return err
}

func (l *Ledger) AttendedUserIDs(ctx context.Context, date string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.DB.WithContext(ctx).Model(&models.Attendance{}).
		Distinct("user_id").
		Where("date = ?", date).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (l *Ledger) InsertBatch(ctx context.Context, recs []*models.Attendance) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UserStats counts the user's attended records overall, within the month
// given by monthPrefix, and per subject. Leave and sick rows are excluded.
func (l *Ledger) UserStats(ctx context.Context, userID uuid.UUID, monthPrefix string) (attendance.UserStats, error) {
	attended := []string{models.StatusPresent, models.StatusLate}
	var out attendance.UserStats

	err := l.DB.WithContext(ctx).Model(&models.Attendance{}).
		Where("user_id = ? AND status IN ?", userID, attended).
		Count(&out.Total).Error
	if err != nil {
		return out, err
	}

	err = l.DB.WithContext(ctx).Model(&models.Attendance{}).
		Where("user_id = ? AND status IN ? AND date LIKE ?", userID, attended, monthPrefix+"%").
		Count(&out.ThisMonth).Error
	if err != nil {
		return out, err
	}

	err = l.DB.WithContext(ctx).Model(&models.Attendance{}).
		Select("subjects.name AS subject, COUNT(*) AS count").
		Joins("JOIN sessions ON sessions.id = attendances.session_id").
		Joins("JOIN subjects ON subjects.id = sessions.subject_id").
		Where("attendances.user_id = ? AND attendances.status IN ?", userID, attended).
		Group("subjects.name").
		Order("count DESC").
		Scan(&out.PerSubject).Error
	if err != nil {
		return out, err
	}

	var last models.Attendance
	err = l.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("date DESC, time DESC").
		First(&last).Error
	if err == nil {
		out.Last = &last
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return out, err
	}
	return out, nil
}

type Roster struct {
	DB *gorm.DB
}

func NewRoster(db *gorm.DB) *Roster { return &Roster{DB: db} }

func (r *Roster) ActiveStudents(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.DB.WithContext(ctx).
		Where("role = ? AND active = ?", models.RoleStudent, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
