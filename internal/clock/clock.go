// Package clock isolates every other package from local-time arithmetic.
// All date and time-of-day decisions in the attendance engine come from one
// Snapshot so that "today" and "now" can never straddle a midnight boundary.
package clock

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Snapshot is a single consistent read of the wall clock in the deployment's
// civil time zone.
type Snapshot struct {
	Today     string // YYYY-MM-DD
	Yesterday string // YYYY-MM-DD
	TimeOfDay string // HH:MM:SS
}

// Clock produces snapshots in a fixed location.
type Clock interface {
	Now() Snapshot
}

type systemClock struct {
	loc *time.Location
}

// New returns a Clock pinned to loc.
func New(loc *time.Location) Clock {
	return &systemClock{loc: loc}
}

func (c *systemClock) Now() Snapshot {
	return At(time.Now(), c.loc)
}

// At builds a Snapshot from one instant. Today, Yesterday and TimeOfDay are
// all derived from the same t, so they are mutually consistent by
// construction.
func At(t time.Time, loc *time.Location) Snapshot {
	local := t.In(loc)
	return Snapshot{
		Today:     local.Format(DateLayout),
		Yesterday: local.AddDate(0, 0, -1).Format(DateLayout),
		TimeOfDay: local.Format(TimeLayout),
	}
}

// Fixed returns a Clock that always reports the same snapshot. Test helper.
func Fixed(snap Snapshot) Clock {
	return fixedClock{snap: snap}
}

type fixedClock struct {
	snap Snapshot
}

func (c fixedClock) Now() Snapshot { return c.snap }
