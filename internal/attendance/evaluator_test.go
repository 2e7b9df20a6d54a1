package attendance

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"attendance-backend/internal/clock"
	"attendance-backend/internal/models"
)

type fakeSessions struct {
	byCode map[string]*models.Session
	err    error
}

func (f *fakeSessions) FindByCode(_ context.Context, code string) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCode[code], nil
}

type fakeLedger struct {
	records   []*models.Attendance
	insertErr error
	readErr   error
	batchErr  error
	batchRuns int
}

func (f *fakeLedger) HasRecordOn(_ context.Context, userID uuid.UUID, date string) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	for _, r := range f.records {
		if r.UserID == userID && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Insert(_ context.Context, rec *models.Attendance) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	// Emulates the (user_id, date) unique index.
	for _, r := range f.records {
		if r.UserID == rec.UserID && r.Date == rec.Date {
			return ErrDuplicateRecord
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) AttendedUserIDs(_ context.Context, date string) ([]uuid.UUID, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, r := range f.records {
		if r.Date != date {
			continue
		}
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

func (f *fakeLedger) InsertBatch(_ context.Context, recs []*models.Attendance) error {
	f.batchRuns++
	if f.batchErr != nil {
		return f.batchErr
	}
	f.records = append(f.records, recs...)
	return nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Publish(event string, _ any) {
	f.events = append(f.events, event)
}

func snapshot(today, yesterday, now string) clock.Clock {
	return clock.Fixed(clock.Snapshot{Today: today, Yesterday: yesterday, TimeOfDay: now})
}

func TestClassifyWindow(t *testing.T) {
	if ClassifyWindow("08:00:00", "09:00:00") != WindowNormal {
		t.Error("start before end should be normal")
	}
	if ClassifyWindow("08:00:00", "08:00:00") != WindowNormal {
		t.Error("equal start and end should be normal")
	}
	if ClassifyWindow("23:00:00", "02:00:00") != WindowOvernight {
		t.Error("start after end should be overnight")
	}
}

func TestWindowEligible(t *testing.T) {
	const (
		today     = "2026-03-02"
		yesterday = "2026-03-01"
	)

	tests := []struct {
		name        string
		start, end  string
		sessionDate string
		now         string
		want        bool
	}{
		{"normal inside window", "08:00:00", "09:00:00", today, "08:30:00", true},
		{"normal at start boundary", "08:00:00", "09:00:00", today, "08:00:00", true},
		{"normal at end boundary", "08:00:00", "09:00:00", today, "09:00:00", true},
		{"normal before start", "08:00:00", "09:00:00", today, "07:59:59", false},
		{"normal after end", "08:00:00", "09:00:00", today, "09:00:01", false},
		{"normal dated yesterday", "08:00:00", "09:00:00", yesterday, "08:30:00", false},
		{"normal dated elsewhere", "08:00:00", "09:00:00", "2026-02-20", "08:30:00", false},

		{"overnight before midnight", "23:00:00", "02:00:00", today, "23:30:00", true},
		{"overnight at start boundary", "23:00:00", "02:00:00", today, "23:00:00", true},
		{"overnight too early on own date", "23:00:00", "02:00:00", today, "22:00:00", false},
		{"overnight after midnight", "23:00:00", "02:00:00", yesterday, "00:20:00", true},
		{"overnight at end boundary next day", "23:00:00", "02:00:00", yesterday, "02:00:00", true},
		{"overnight past end next day", "23:00:00", "02:00:00", yesterday, "02:00:01", false},
		{"overnight dated elsewhere", "23:00:00", "02:00:00", "2026-02-20", "23:30:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindowEligible(tt.start, tt.end, tt.sessionDate, today, yesterday, tt.now)
			if got != tt.want {
				t.Errorf("WindowEligible(%s-%s on %s at %s) = %v, want %v",
					tt.start, tt.end, tt.sessionDate, tt.now, got, tt.want)
			}
		})
	}
}

func TestHaversine(t *testing.T) {
	if d := Haversine(-6.2, 106.8, -6.2, 106.8); d != 0 {
		t.Errorf("same point distance = %f, want 0", d)
	}

	// One degree of latitude along a meridian is about 111.19 km.
	d := Haversine(0, 0, 1, 0)
	if math.Abs(d-111194.9) > 100 {
		t.Errorf("one-degree latitude distance = %f, want ~111194.9", d)
	}
}

func newScanFixture(session *models.Session) (*Evaluator, *fakeLedger, *fakeNotifier) {
	sessions := &fakeSessions{byCode: map[string]*models.Session{}}
	if session != nil {
		sessions.byCode[session.Code] = session
	}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	eval := NewEvaluator(sessions, ledger, snapshot("2026-03-02", "2026-03-01", "08:30:00"), notifier)
	return eval, ledger, notifier
}

func mathSession() *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		Class:     "10.1",
		Date:      "2026-03-02",
		StartTime: "08:00:00",
		EndTime:   "09:00:00",
		Code:      "QR_1_MATH10",
		Active:    true,
	}
}

func rejectionCode(t *testing.T, err error) RejectCode {
	t.Helper()
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected a rejection, got %v", err)
	}
	return rej.Code
}

func TestEvaluateScan(t *testing.T) {
	ctx := context.Background()
	student := ScanUser{ID: uuid.New(), Name: "Siti", Class: "10.1"}

	t.Run("accepts a valid scan and records presence", func(t *testing.T) {
		eval, ledger, notifier := newScanFixture(mathSession())

		result, err := eval.EvaluateScan(ctx, "QR_1_MATH10", student, nil)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if result.Record.Status != models.StatusPresent {
			t.Errorf("status = %q, want present", result.Record.Status)
		}
		if result.Record.Date != "2026-03-02" || result.Record.Time != "08:30:00" {
			t.Errorf("record stamped %s %s, want 2026-03-02 08:30:00", result.Record.Date, result.Record.Time)
		}
		if len(ledger.records) != 1 {
			t.Errorf("ledger rows = %d, want 1", len(ledger.records))
		}
		if len(notifier.events) != 1 || notifier.events[0] != "attendance-recorded" {
			t.Errorf("events = %v, want [attendance-recorded]", notifier.events)
		}
	})

	t.Run("rejects a second scan the same day", func(t *testing.T) {
		eval, _, _ := newScanFixture(mathSession())

		if _, err := eval.EvaluateScan(ctx, "QR_1_MATH10", student, nil); err != nil {
			t.Fatalf("first scan failed: %v", err)
		}
		_, err := eval.EvaluateScan(ctx, "QR_1_MATH10", student, nil)
		if code := rejectionCode(t, err); code != RejectAlreadyRecorded {
			t.Errorf("code = %q, want already_recorded", code)
		}
	})

	t.Run("rejects an unknown code", func(t *testing.T) {
		eval, _, _ := newScanFixture(nil)

		_, err := eval.EvaluateScan(ctx, "QR_1_NOPE", student, nil)
		if code := rejectionCode(t, err); code != RejectCodeNotFound {
			t.Errorf("code = %q, want code_not_found", code)
		}
	})

	t.Run("class mismatch wins over inactive session", func(t *testing.T) {
		session := mathSession()
		session.Class = "11.2"
		session.Active = false
		eval, _, _ := newScanFixture(session)

		_, err := eval.EvaluateScan(ctx, session.Code, student, nil)
		if code := rejectionCode(t, err); code != RejectWrongClass {
			t.Errorf("code = %q, want wrong_class", code)
		}

		var rej *Rejection
		errors.As(err, &rej)
		if rej.Meta["sessionClass"] != "11.2" || rej.Meta["userClass"] != "10.1" {
			t.Errorf("meta = %v, want both class labels", rej.Meta)
		}
	})

	t.Run("rejects a deactivated session", func(t *testing.T) {
		session := mathSession()
		session.Active = false
		eval, _, _ := newScanFixture(session)

		_, err := eval.EvaluateScan(ctx, session.Code, student, nil)
		if code := rejectionCode(t, err); code != RejectSessionInactive {
			t.Errorf("code = %q, want session_inactive", code)
		}
	})

	t.Run("rejects a scan outside the window", func(t *testing.T) {
		session := mathSession()
		session.StartTime = "10:00:00"
		session.EndTime = "11:00:00"
		eval, _, _ := newScanFixture(session)

		_, err := eval.EvaluateScan(ctx, session.Code, student, nil)
		if code := rejectionCode(t, err); code != RejectOutsideWindow {
			t.Errorf("code = %q, want outside_window", code)
		}
	})

	t.Run("requires location for a geofenced session", func(t *testing.T) {
		session := mathSession()
		lat, lon, radius := -6.2, 106.8, 100.0
		session.Latitude, session.Longitude, session.RadiusMeters = &lat, &lon, &radius
		eval, _, _ := newScanFixture(session)

		_, err := eval.EvaluateScan(ctx, session.Code, student, nil)
		if code := rejectionCode(t, err); code != RejectGeoRequired {
			t.Errorf("code = %q, want geo_required", code)
		}
	})

	t.Run("accepts a scan exactly on the radius boundary", func(t *testing.T) {
		session := mathSession()
		lat, lon := -6.2, 106.8
		scan := &Geo{Latitude: -6.201, Longitude: 106.8}
		radius := Haversine(scan.Latitude, scan.Longitude, lat, lon)
		session.Latitude, session.Longitude, session.RadiusMeters = &lat, &lon, &radius
		eval, _, _ := newScanFixture(session)

		if _, err := eval.EvaluateScan(ctx, session.Code, student, scan); err != nil {
			t.Fatalf("boundary scan rejected: %v", err)
		}
	})

	t.Run("rejects a scan beyond the radius with the distance", func(t *testing.T) {
		session := mathSession()
		lat, lon, radius := -6.2, 106.8, 50.0
		session.Latitude, session.Longitude, session.RadiusMeters = &lat, &lon, &radius
		eval, ledger, notifier := newScanFixture(session)

		_, err := eval.EvaluateScan(ctx, session.Code, student, &Geo{Latitude: -6.21, Longitude: 106.8})
		if code := rejectionCode(t, err); code != RejectOutOfRange {
			t.Errorf("code = %q, want out_of_range", code)
		}

		var rej *Rejection
		errors.As(err, &rej)
		if rej.Meta["distanceMeters"].(float64) <= radius {
			t.Errorf("meta distance %v should exceed radius %v", rej.Meta["distanceMeters"], radius)
		}
		if len(ledger.records) != 0 {
			t.Error("rejection must not write a ledger row")
		}
		if len(notifier.events) != 0 {
			t.Error("rejection must not publish events")
		}
	})

	t.Run("maps a losing insert race to already recorded", func(t *testing.T) {
		eval, ledger, _ := newScanFixture(mathSession())
		ledger.insertErr = ErrDuplicateRecord

		_, err := eval.EvaluateScan(ctx, "QR_1_MATH10", student, nil)
		if code := rejectionCode(t, err); code != RejectAlreadyRecorded {
			t.Errorf("code = %q, want already_recorded", code)
		}
	})

	t.Run("overnight session accepted after midnight", func(t *testing.T) {
		session := mathSession()
		session.Date = "2026-03-01" // yesterday relative to the fixture clock
		session.StartTime = "23:00:00"
		session.EndTime = "02:00:00"
		sessions := &fakeSessions{byCode: map[string]*models.Session{session.Code: session}}
		eval := NewEvaluator(sessions, &fakeLedger{}, snapshot("2026-03-02", "2026-03-01", "00:20:00"), nil)

		if _, err := eval.EvaluateScan(ctx, session.Code, student, nil); err != nil {
			t.Fatalf("post-midnight overnight scan rejected: %v", err)
		}
	})
}
