package attendance

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"attendance-backend/internal/clock"
	"attendance-backend/internal/models"
)

// AbsentMarkTime is the fixed time-of-day stamped on back-filled absence
// rows, chosen to land after the school day.
const AbsentMarkTime = "17:00:00"

// AbsentNote marks rows inserted by the reconciliation job.
const AbsentNote = "system: automatic absence"

// Job failure stages. Every failure aborts the run with nothing written, or
// with the whole batch rolled back.
const (
	StageRosterRead = "roster-read"
	StageLedgerRead = "ledger-read"
	StageBatchWrite = "batch-write"
)

// JobError is an operational reconciliation failure.
type JobError struct {
	Stage string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("reconciliation %s failed: %v", e.Stage, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Reconciler back-fills absence rows for active students with no attendance
// record for today. Runs are serialized: a manual trigger and the scheduled
// tick can never interleave.
type Reconciler struct {
	Ledger   Ledger
	Roster   Roster
	Clock    clock.Clock
	Notifier Notifier

	mu sync.Mutex
}

func NewReconciler(ledger Ledger, roster Roster, clk clock.Clock, notifier Notifier) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{Ledger: ledger, Roster: roster, Clock: clk, Notifier: notifier}
}

// Run computes today's missing students and inserts one absent row per
// student in a single transaction. It returns the number of rows inserted.
// Re-running on the same day is idempotent in effect: students recorded
// since the previous run simply drop out of the missing set.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// One snapshot for every read and write in this run.
	snap := r.Clock.Now()

	students, err := r.Roster.ActiveStudents(ctx)
	if err != nil {
		return 0, &JobError{Stage: StageRosterRead, Err: err}
	}

	attendedIDs, err := r.Ledger.AttendedUserIDs(ctx, snap.Today)
	if err != nil {
		return 0, &JobError{Stage: StageLedgerRead, Err: err}
	}
	attended := make(map[uuid.UUID]struct{}, len(attendedIDs))
	for _, id := range attendedIDs {
		attended[id] = struct{}{}
	}

	var recs []*models.Attendance
	for _, s := range students {
		if _, ok := attended[s.ID]; ok {
			continue
		}
		recs = append(recs, &models.Attendance{
			UserID: s.ID,
			Date:   snap.Today,
			Time:   AbsentMarkTime,
			Status: models.StatusAbsent,
			Note:   AbsentNote,
		})
	}

	if len(recs) == 0 {
		return 0, nil
	}

	if err := r.Ledger.InsertBatch(ctx, recs); err != nil {
		return 0, &JobError{Stage: StageBatchWrite, Err: err}
	}

	r.Notifier.Publish("absence-reconciled", map[string]any{
		"date":  snap.Today,
		"count": len(recs),
	})

	return len(recs), nil
}
