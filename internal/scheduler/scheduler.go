// Package scheduler runs the daily absence reconciliation on a cron
// schedule in the deployment's local zone.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"attendance-backend/internal/attendance"
)

// Start registers the reconciliation tick and starts the cron loop. The
// SkipIfStillRunning chain guarantees a slow run is never overlapped by the
// next tick; a failed run is logged and left for the following tick, never
// retried within the same one.
func Start(spec string, loc *time.Location, rec *attendance.Reconciler) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		count, err := rec.Run(ctx)
		if err != nil {
			log.Printf("[RECONCILE] run failed: %v", err)
			return
		}
		log.Printf("[RECONCILE] inserted %d absence rows", count)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RECONCILE] started schedule=%q tz=%s", spec, loc)
	c.Start()
	return c, nil
}
