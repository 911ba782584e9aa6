// Package alarm schedules in-process alarms and timers. Jobs do not
// survive a restart; OS-level scheduling is deliberately out of scope.
package alarm

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// Kind distinguishes a repeating alarm from a one-shot timer.
type Kind int

const (
	KindAlarm Kind = iota // fires daily at a clock time
	KindTimer             // fires once after a duration
)

// FireFunc runs when a job fires, on the scheduler's goroutine.
type FireFunc func(kind Kind)

type job struct {
	id    string
	kind  Kind
	timer *time.Timer
	// for alarms, the clock time used to compute the next firing
	hour, minute int
}

// Scheduler owns all pending alarms and timers.
type Scheduler struct {
	onFire FireFunc
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*job

	// test seam
	now func() time.Time
}

// NewScheduler builds an empty scheduler; onFire handles every firing.
func NewScheduler(onFire FireFunc) *Scheduler {
	return &Scheduler{
		onFire: onFire,
		logger: observability.ComponentLogger("alarm"),
		jobs:   make(map[string]*job),
		now:    time.Now,
	}
}

// AddAlarm schedules a daily alarm at the given clock time and returns
// the wait until it first fires.
func (s *Scheduler) AddAlarm(hour, minute int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := s.untilClock(hour, minute)
	j := &job{
		id:     uuid.NewString(),
		kind:   KindAlarm,
		hour:   hour,
		minute: minute,
	}
	j.timer = time.AfterFunc(wait, func() { s.fire(j) })
	s.jobs[j.id] = j

	s.logger.Info().Int("hour", hour).Int("minute", minute).Dur("wait", wait).Msg("Alarm set")
	return wait
}

// AddTimer schedules a one-shot timer.
func (s *Scheduler) AddTimer(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &job{id: uuid.NewString(), kind: KindTimer}
	j.timer = time.AfterFunc(d, func() { s.fire(j) })
	s.jobs[j.id] = j

	s.logger.Info().Dur("duration", d).Msg("Timer set")
}

// DeleteAll cancels every pending alarm and timer and reports how many
// were removed.
func (s *Scheduler) DeleteAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.jobs)
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("Cleared pending alarms and timers")
	}
	return n
}

// Pending reports how many jobs are scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	if _, ok := s.jobs[j.id]; !ok {
		// cancelled between firing and lock acquisition
		s.mu.Unlock()
		return
	}
	if j.kind == KindTimer {
		delete(s.jobs, j.id)
	} else {
		j.timer.Reset(s.untilClock(j.hour, j.minute))
	}
	s.mu.Unlock()

	s.logger.Info().Str("kind", kindName(j.kind)).Msg("Job fired")
	if s.onFire != nil {
		s.onFire(j.kind)
	}
}

// untilClock computes the wait to the next occurrence of hour:minute.
func (s *Scheduler) untilClock(hour, minute int) time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func kindName(k Kind) string {
	if k == KindAlarm {
		return "alarm"
	}
	return "timer"
}
