package scheduler

import (
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

// Scheduler owns the per-device ordered job lists. It is not safe for
// concurrent use: only the core loop goroutine may call its methods.
type Scheduler struct {
	jobs map[caniot.DeviceId][]*Job
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{jobs: make(map[caniot.DeviceId][]*Job)}
}

// AddJob appends a job to a device's list.
func (s *Scheduler) AddJob(did caniot.DeviceId, job *Job) {
	s.jobs[did] = append(s.jobs[did], job)
}

// Jobs returns a device's job list (nil if none scheduled).
func (s *Scheduler) Jobs(did caniot.DeviceId) []*Job {
	return s.jobs[did]
}

// DeviceTTL returns the minimum TTL across a device's jobs, or false if
// none are scheduled.
func (s *Scheduler) DeviceTTL(did caniot.DeviceId, now time.Time) (time.Duration, bool) {
	var (
		min   time.Duration
		found bool
	)
	for _, j := range s.jobs[did] {
		ttl, ok := j.TTL(now)
		if !ok {
			continue
		}
		if !found || ttl < min {
			min, found = ttl, true
		}
	}
	return min, found
}

// MinTTL returns the minimum TTL across every device's jobs, used by the
// core loop to bound its sleep.
func (s *Scheduler) MinTTL(now time.Time) (time.Duration, bool) {
	var (
		min   time.Duration
		found bool
	)
	for did := range s.jobs {
		ttl, ok := s.DeviceTTL(did, now)
		if !ok {
			continue
		}
		if !found || ttl < min {
			min, found = ttl, true
		}
	}
	return min, found
}

// ReadyJobs returns, for every device with at least one due job, the
// subset of its jobs that are ready to fire. The caller is responsible
// for invoking the controller and then calling Advance on each returned
// job.
func (s *Scheduler) ReadyJobs(now time.Time) map[caniot.DeviceId][]*Job {
	out := make(map[caniot.DeviceId][]*Job)
	for did, jobs := range s.jobs {
		var ready []*Job
		for _, j := range jobs {
			if j.Ready(now) {
				ready = append(ready, j)
			}
		}
		if len(ready) > 0 {
			out[did] = ready
		}
	}
	return out
}

// RetainJobs applies f to every job of did, removing those for which f
// returns false. f may mutate the job's Expr, in which case the job's
// Next instant is rebuilt from LastEval before being kept.
func (s *Scheduler) RetainJobs(did caniot.DeviceId, f func(*Job) bool) {
	jobs := s.jobs[did]
	kept := jobs[:0]
	for _, j := range jobs {
		if f(j) {
			j.Rebuild()
			kept = append(kept, j)
		}
	}
	if len(kept) == 0 {
		delete(s.jobs, did)
		return
	}
	s.jobs[did] = kept
}
