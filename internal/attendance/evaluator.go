package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"attendance-backend/internal/clock"
	"attendance-backend/internal/models"
)

// ScanUser is the verified identity a scan arrives with. The evaluator
// trusts it as already authenticated.
type ScanUser struct {
	ID    uuid.UUID
	Name  string
	Class string
}

// Geo is a caller-supplied scan location.
type Geo struct {
	Latitude  float64
	Longitude float64
}

// ScanResult is an accepted scan.
type ScanResult struct {
	Session *models.Session
	Record  *models.Attendance
}

// WindowKind classifies a session window by its start/end relation.
type WindowKind int

const (
	// WindowNormal starts and ends within one civil day.
	WindowNormal WindowKind = iota
	// WindowOvernight spans midnight into the following civil day.
	WindowOvernight
)

// ClassifyWindow derives the window kind from time-of-day strings. Equal
// start and end counts as normal (a single-instant window).
func ClassifyWindow(start, end string) WindowKind {
	if start <= end {
		return WindowNormal
	}
	return WindowOvernight
}

// WindowEligible decides whether a scan at time-of-day now is inside the
// session's window. All arguments are zero-padded civil strings, so plain
// lexicographic comparison is ordering-correct.
//
// A normal window is scannable only on its own date, between start and end
// inclusive. An overnight window is scannable on its own date from start
// onward (before midnight), and on the following day up to end (after
// midnight). That is why the session date may legitimately equal yesterday.
func WindowEligible(start, end, sessionDate, today, yesterday, now string) bool {
	switch ClassifyWindow(start, end) {
	case WindowNormal:
		return sessionDate == today && start <= now && now <= end
	case WindowOvernight:
		if sessionDate == today {
			return now >= start
		}
		if sessionDate == yesterday {
			return now <= end
		}
	}
	return false
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0

	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Evaluator decides whether a scan is accepted and writes the resulting
// ledger row. It holds no state between calls.
type Evaluator struct {
	Sessions SessionStore
	Ledger   Ledger
	Clock    clock.Clock
	Notifier Notifier
}

func NewEvaluator(sessions SessionStore, ledger Ledger, clk clock.Clock, notifier Notifier) *Evaluator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Evaluator{Sessions: sessions, Ledger: ledger, Clock: clk, Notifier: notifier}
}

// EvaluateScan runs the eligibility checks in order; the first failure wins.
// A refused scan returns a *Rejection; any other error is a system fault.
func (e *Evaluator) EvaluateScan(ctx context.Context, code string, user ScanUser, geo *Geo) (*ScanResult, error) {
	snap := e.Clock.Now()

	session, err := e.Sessions.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve scan code: %w", err)
	}
	if session == nil {
		return nil, reject(RejectCodeNotFound, "invalid code: session not found")
	}

	if session.Class != user.Class {
		return nil, rejectWrongClass(session.Class, user.Class)
	}

	if !session.Active {
		return nil, reject(RejectSessionInactive, "this session has been deactivated")
	}

	if !WindowEligible(session.StartTime, session.EndTime, session.Date, snap.Today, snap.Yesterday, snap.TimeOfDay) {
		return nil, reject(RejectOutsideWindow, "the session has not started or is already over")
	}

	if session.Geofenced() {
		if geo == nil {
			return nil, reject(RejectGeoRequired, "this session requires your GPS location")
		}
		distance := Haversine(geo.Latitude, geo.Longitude, *session.Latitude, *session.Longitude)
		if distance > *session.RadiusMeters {
			return nil, rejectOutOfRange(distance, *session.RadiusMeters)
		}
	}

	exists, err := e.Ledger.HasRecordOn(ctx, user.ID, snap.Today)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		return nil, reject(RejectAlreadyRecorded, "your attendance is already recorded for today")
	}

	record := &models.Attendance{
		UserID:    user.ID,
		SessionID: &session.ID,
		Date:      snap.Today,
		Time:      snap.TimeOfDay,
		Status:    models.StatusPresent,
	}
	if geo != nil {
		record.Latitude = &geo.Latitude
		record.Longitude = &geo.Longitude
	}

	if err := e.Ledger.Insert(ctx, record); err != nil {
		// The unique index closes the gap between check and insert.
		if errors.Is(err, ErrDuplicateRecord) {
			return nil, reject(RejectAlreadyRecorded, "your attendance is already recorded for today")
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	e.Notifier.Publish("attendance-recorded", map[string]any{
		"userId":   user.ID,
		"userName": user.Name,
		"class":    user.Class,
		"date":     snap.Today,
		"time":     snap.TimeOfDay,
		"status":   models.StatusPresent,
	})

	return &ScanResult{Session: session, Record: record}, nil
}
