// Package schedule runs a job at the end of every day in a fixed
// timezone.
package schedule

import (
	"context"
	"time"

	"spendir/internal/log"
)

// Job receives a moment inside the day that just ended.
type Job func(ctx context.Context, endedDay time.Time)

// Daily fires its job once per day boundary. The wait is recomputed
// from the wall clock after every firing, so drift and suspend do not
// accumulate.
type Daily struct {
	zone   *time.Location
	job    Job
	logger *log.Logger
}

func NewDaily(zone *time.Location, job Job, logger *log.Logger) *Daily {
	return &Daily{zone: zone, job: job, logger: logger}
}

// Next returns the first midnight in zone strictly after now.
func Next(now time.Time, zone *time.Location) time.Time {
	local := now.In(zone)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, zone)
}

// Run blocks until the context is canceled, invoking the job at each
// day boundary.
func (d *Daily) Run(ctx context.Context) {
	for {
		next := Next(time.Now(), d.zone)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		ended := next.Add(-time.Second)
		d.logger.Info("day ended, running scheduled job", log.FieldPeriod, ended.In(d.zone).Format("2006-01-02"))
		d.job(ctx, ended)
	}
}
