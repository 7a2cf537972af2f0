package jobs

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts an optional leading seconds field and descriptors like @hourly.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// delayedSchedule never fires before start.
type delayedSchedule struct {
	cron.Schedule
	start time.Time
}

func (s delayedSchedule) Next(t time.Time) time.Time {
	if t.Before(s.start) {
		t = s.start
	}
	return s.Schedule.Next(t)
}

// onceSchedule fires a single time at (or right away when at has passed) and
// then never again.
type onceSchedule struct {
	mu   sync.Mutex
	at   time.Time
	done bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return time.Time{}
	}
	s.done = true
	if s.at.Before(t) {
		return t
	}
	return s.at
}
