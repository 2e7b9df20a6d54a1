package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"attendance-backend/internal/models"
)

type fakeRoster struct {
	students []models.User
	err      error
}

func (f *fakeRoster) ActiveStudents(_ context.Context) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.students, nil
}

func makeStudents(n int) []models.User {
	students := make([]models.User, n)
	for i := range students {
		students[i] = models.User{ID: uuid.New(), Role: models.RoleStudent, Active: true}
	}
	return students
}

func TestReconcilerRun(t *testing.T) {
	ctx := context.Background()
	clk := snapshot("2026-03-02", "2026-03-01", "17:00:05")

	t.Run("inserts one absent row per missing student", func(t *testing.T) {
		students := makeStudents(30)
		ledger := &fakeLedger{}
		for _, s := range students[:25] {
			ledger.records = append(ledger.records, &models.Attendance{
				UserID: s.ID, Date: "2026-03-02", Status: models.StatusPresent,
			})
		}

		rec := NewReconciler(ledger, &fakeRoster{students: students}, clk, nil)
		count, err := rec.Run(ctx)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if count != 5 {
			t.Fatalf("inserted = %d, want 5", count)
		}

		absents := 0
		for _, r := range ledger.records {
			if r.Status != models.StatusAbsent {
				continue
			}
			absents++
			if r.Date != "2026-03-02" {
				t.Errorf("absent row dated %s, want today", r.Date)
			}
			if r.Time != AbsentMarkTime {
				t.Errorf("absent row at %s, want %s", r.Time, AbsentMarkTime)
			}
			if r.Note != AbsentNote {
				t.Errorf("absent row note %q, want %q", r.Note, AbsentNote)
			}
			if r.SessionID != nil {
				t.Error("absent row must not reference a session")
			}
		}
		if absents != 5 {
			t.Errorf("absent rows = %d, want 5", absents)
		}
	})

	t.Run("second run inserts nothing", func(t *testing.T) {
		students := makeStudents(10)
		ledger := &fakeLedger{}
		rec := NewReconciler(ledger, &fakeRoster{students: students}, clk, nil)

		first, err := rec.Run(ctx)
		if err != nil || first != 10 {
			t.Fatalf("first run = (%d, %v), want (10, nil)", first, err)
		}
		second, err := rec.Run(ctx)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if second != 0 {
			t.Errorf("second run inserted %d, want 0", second)
		}
		if len(ledger.records) != 10 {
			t.Errorf("ledger rows = %d, want 10", len(ledger.records))
		}
	})

	t.Run("no missing students skips the batch entirely", func(t *testing.T) {
		students := makeStudents(3)
		ledger := &fakeLedger{}
		for _, s := range students {
			ledger.records = append(ledger.records, &models.Attendance{
				UserID: s.ID, Date: "2026-03-02", Status: models.StatusLeave,
			})
		}

		rec := NewReconciler(ledger, &fakeRoster{students: students}, clk, nil)
		count, err := rec.Run(ctx)
		if err != nil || count != 0 {
			t.Fatalf("run = (%d, %v), want (0, nil)", count, err)
		}
		if ledger.batchRuns != 0 {
			t.Errorf("batch runs = %d, want 0", ledger.batchRuns)
		}
	})

	t.Run("roster failure aborts before any write", func(t *testing.T) {
		ledger := &fakeLedger{}
		rec := NewReconciler(ledger, &fakeRoster{err: errors.New("db down")}, clk, nil)

		_, err := rec.Run(ctx)
		var jobErr *JobError
		if !errors.As(err, &jobErr) || jobErr.Stage != StageRosterRead {
			t.Fatalf("err = %v, want roster-read job error", err)
		}
		if len(ledger.records) != 0 {
			t.Error("roster failure must not write rows")
		}
	})

	t.Run("ledger read failure aborts before any write", func(t *testing.T) {
		ledger := &fakeLedger{readErr: errors.New("db down")}
		rec := NewReconciler(ledger, &fakeRoster{students: makeStudents(2)}, clk, nil)

		_, err := rec.Run(ctx)
		var jobErr *JobError
		if !errors.As(err, &jobErr) || jobErr.Stage != StageLedgerRead {
			t.Fatalf("err = %v, want ledger-read job error", err)
		}
	})

	t.Run("batch failure leaves no partial rows", func(t *testing.T) {
		ledger := &fakeLedger{batchErr: errors.New("deadlock")}
		rec := NewReconciler(ledger, &fakeRoster{students: makeStudents(4)}, clk, nil)

		_, err := rec.Run(ctx)
		var jobErr *JobError
		if !errors.As(err, &jobErr) || jobErr.Stage != StageBatchWrite {
			t.Fatalf("err = %v, want batch-write job error", err)
		}
		if len(ledger.records) != 0 {
			t.Error("failed batch must roll back completely")
		}
	})

	t.Run("publishes a summary event on success", func(t *testing.T) {
		notifier := &fakeNotifier{}
		rec := NewReconciler(&fakeLedger{}, &fakeRoster{students: makeStudents(1)}, clk, notifier)

		if _, err := rec.Run(ctx); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if len(notifier.events) != 1 || notifier.events[0] != "absence-reconciled" {
			t.Errorf("events = %v, want [absence-reconciled]", notifier.events)
		}
	})
}
