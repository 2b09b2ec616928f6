// Package scheduler implements the per-device job list described in the
// core event loop's job-scheduling component. The underlying next-instant
// computation for cron-style jobs is hand-rolled on the standard library
// (daily-at-time and fixed-interval specializations only): no cron
// iterator library appears anywhere in the retrieved dependency pack, and
// the two specializations are all the device controllers actually need.
package scheduler

import "time"

// Kind is how a Job's future occurrences are determined.
type Kind int

const (
	Unscheduled Kind = iota
	Immediate
	Cron
)

// CronKind selects which cron specialization a Cron-kind Job uses.
type CronKind int

const (
	DailyAt CronKind = iota
	FixedInterval
)

// CronExpr is either a daily local time-of-day, or a fixed interval from
// an anchor instant.
type CronExpr struct {
	Kind CronKind

	// DailyAt: offset since local midnight, e.g. 2*time.Minute for 00:02:00.
	DailyAt time.Duration

	// FixedInterval: the period between firings.
	Interval time.Duration
}

// Job is one scheduled unit of work for a device controller.
type Job struct {
	ID         string
	Scheduling Kind
	Expr       CronExpr

	// Next is the next occurrence time; zero/ignored when Scheduling is
	// Unscheduled.
	Next time.Time
	// LastEval is the instant the job's iterator was last advanced from,
	// used to rebuild Next after a configuration change shifts Expr.
	LastEval time.Time
}

// NewImmediateJob builds a job that fires once on the next tick.
func NewImmediateJob(id string, now time.Time) *Job {
	return &Job{ID: id, Scheduling: Immediate, Next: now}
}

// NewDailyJob builds a job that fires every day at the given local
// time-of-day offset (e.g. 2*time.Minute means 00:02:00 local).
func NewDailyJob(id string, dailyAt time.Duration, now time.Time) *Job {
	j := &Job{ID: id, Scheduling: Cron, Expr: CronExpr{Kind: DailyAt, DailyAt: dailyAt}, LastEval: now}
	j.Next = nextDailyInstant(dailyAt, now)
	return j
}

// NewIntervalJob builds a job that fires every interval starting from now.
func NewIntervalJob(id string, interval time.Duration, now time.Time) *Job {
	j := &Job{ID: id, Scheduling: Cron, Expr: CronExpr{Kind: FixedInterval, Interval: interval}, LastEval: now}
	j.Next = now.Add(interval)
	return j
}

// TTL returns the delay until the job's nearest future instant: 0 if
// already due, and false if the job is Unscheduled.
func (j *Job) TTL(now time.Time) (time.Duration, bool) {
	if j.Scheduling == Unscheduled {
		return 0, false
	}
	if !j.Next.After(now) {
		return 0, true
	}
	return j.Next.Sub(now), true
}

// Ready reports whether the job's next instant has arrived.
func (j *Job) Ready(now time.Time) bool {
	ttl, ok := j.TTL(now)
	return ok && ttl == 0
}

// Advance moves the job past its current Next occurrence: for Cron jobs
// it computes the following instant; for Immediate it transitions to
// Unscheduled.
func (j *Job) Advance(now time.Time) {
	switch j.Scheduling {
	case Immediate:
		j.Scheduling = Unscheduled
	case Cron:
		j.LastEval = now
		switch j.Expr.Kind {
		case DailyAt:
			j.Next = nextDailyInstant(j.Expr.DailyAt, now)
		case FixedInterval:
			j.Next = now.Add(j.Expr.Interval)
		}
	}
}

// Rebuild recomputes Next from LastEval after Expr has been mutated by a
// configuration change (e.g. a new daily time).
func (j *Job) Rebuild() {
	if j.Scheduling != Cron {
		return
	}
	switch j.Expr.Kind {
	case DailyAt:
		j.Next = nextDailyInstant(j.Expr.DailyAt, j.LastEval)
	case FixedInterval:
		j.Next = j.LastEval.Add(j.Expr.Interval)
	}
}

// nextDailyInstant returns the next local instant at dailyAt offset from
// midnight strictly after `after`.
func nextDailyInstant(dailyAt time.Duration, after time.Time) time.Time {
	loc := after.Location()
	midnight := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, loc)
	candidate := midnight.Add(dailyAt)
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
