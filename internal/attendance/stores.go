package attendance

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"attendance-backend/internal/models"
)

// ErrDuplicateRecord is returned by Ledger.Insert when a row for the same
// (user, date) already exists. The storage layer maps its unique-index
// violation to this error so a scan that loses a race is still rejected as
// already recorded rather than surfacing a database fault.
var ErrDuplicateRecord = errors.New("attendance record already exists for this user and date")

// SessionStore resolves scan codes to sessions.
type SessionStore interface {
	// FindByCode returns (nil, nil) when no session carries the code.
	FindByCode(ctx context.Context, code string) (*models.Session, error)
}

// Ledger is the attendance record store. All writes to attendance rows in
// the system go through Insert (scans, leave submissions) or InsertBatch
// (reconciliation).
type Ledger interface {
	HasRecordOn(ctx context.Context, userID uuid.UUID, date string) (bool, error)
	Insert(ctx context.Context, rec *models.Attendance) error
	// AttendedUserIDs returns the distinct user ids with any record on date.
	AttendedUserIDs(ctx context.Context, date string) ([]uuid.UUID, error)
	// InsertBatch inserts every record inside one transaction; if any insert
	// fails none of the records persist.
	InsertBatch(ctx context.Context, recs []*models.Attendance) error
}

// SubjectCount is one row of a per-subject attendance breakdown.
type SubjectCount struct {
	Subject string `json:"subject"`
	Count   int64  `json:"count"`
}

// UserStats summarizes one student's attended records.
type UserStats struct {
	Total      int64
	ThisMonth  int64
	PerSubject []SubjectCount
	Last       *models.Attendance
}

// StatsReader serves the student statistics surface.
type StatsReader interface {
	// UserStats counts attended records overall, within the month given by
	// monthPrefix (YYYY-MM), and per subject.
	UserStats(ctx context.Context, userID uuid.UUID, monthPrefix string) (UserStats, error)
}

// Roster exposes the read-only view of users the reconciliation job needs.
type Roster interface {
	ActiveStudents(ctx context.Context) ([]models.User, error)
}

// Notifier fans events out to listeners. Delivery is best-effort and must
// never block or fail the caller.
type Notifier interface {
	Publish(event string, payload any)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(string, any) {}
