package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/scheduler"
)

// MidnightSpec fires at 00:00 every day.
const MidnightSpec = "0 0 * * *"

// DayBoundary refreshes at local midnight, when "today" changes even
// though the display mode does not.
type DayBoundary struct {
	target Target
	loc    *time.Location
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewDayBoundary schedules a day_boundary refresh at midnight in loc.
func NewDayBoundary(target Target, loc *time.Location, logger zerolog.Logger) (*DayBoundary, error) {
	if loc == nil {
		loc = time.Local
	}

	d := &DayBoundary{
		target: target,
		loc:    loc,
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger.With().Str("component", "day_boundary").Str("timezone", loc.String()).Logger(),
	}
	if _, err := d.cron.AddJob(MidnightSpec, d); err != nil {
		return nil, fmt.Errorf("scheduling day boundary: %w", err)
	}
	return d, nil
}

// Start runs the cron scheduler in its own goroutine.
func (d *DayBoundary) Start() {
	d.cron.Start()
	d.logger.Info().Time("next", d.Next()).Msg("day boundary scheduled")
}

// Stop halts the scheduler and waits for a running job.
func (d *DayBoundary) Stop() {
	<-d.cron.Stop().Done()
}

// Next returns the next scheduled fire time.
func (d *DayBoundary) Next() time.Time {
	entries := d.cron.Entries()
	if len(entries) > 0 && !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return d.NextAfter(time.Now())
}

// NextAfter returns the first fire time after t, in the scheduler's zone.
func (d *DayBoundary) NextAfter(t time.Time) time.Time {
	entries := d.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(t.In(d.loc))
}

// Run implements cron.Job.
func (d *DayBoundary) Run() {
	gen := d.target.RefreshAll(scheduler.TriggerDayBoundary)
	d.logger.Info().Uint64("generation", gen).Msg("day boundary refresh")
}
