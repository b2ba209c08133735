package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MangaVote/internal/ports"
)

// Schedule is a monthly wall-clock trigger.
type Schedule struct {
	DayOfMonth int
	Hour       int
	Minute     int
	Location   *time.Location
}

// MonthlyScheduler fires once a month. Jobs run on the scheduler goroutine, one at a time,
// so a slow run delays the next trigger rather than overlapping it.
type MonthlyScheduler struct {
	schedule Schedule
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*MonthlyScheduler)(nil)

// NewMonthlyScheduler validates the schedule; a nil location means UTC.
func NewMonthlyScheduler(schedule Schedule) (*MonthlyScheduler, error) {
	if schedule.DayOfMonth < 1 || schedule.DayOfMonth > 31 {
		return nil, fmt.Errorf("day of month %d out of range", schedule.DayOfMonth)
	}
	if schedule.Hour < 0 || schedule.Hour > 23 || schedule.Minute < 0 || schedule.Minute > 59 {
		return nil, fmt.Errorf("time of day %02d:%02d out of range", schedule.Hour, schedule.Minute)
	}
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	return &MonthlyScheduler{schedule: schedule, now: time.Now, after: time.After}, nil
}

// Start launches the trigger loop. Starting twice is a no-op.
func (m *MonthlyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return nil
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(ctx, job, m.stop, m.done)
	return nil
}

func (m *MonthlyScheduler) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)
	for {
		next := m.schedule.Next(m.now())
		select {
		case t := <-m.after(time.Until(next)):
			job(t)
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

// Stop halts the loop and waits for a running job to return, or for ctx to expire.
func (m *MonthlyScheduler) Stop(ctx context.Context) error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the first trigger strictly after t. Days past the end of a short month
// fall on its last day.
func (s Schedule) Next(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)

	candidate := s.inMonth(local.Year(), local.Month(), loc)
	if !candidate.After(local) {
		candidate = s.inMonth(local.Year(), local.Month()+1, loc)
	}
	return candidate
}

func (s Schedule) inMonth(year int, month time.Month, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(s.DayOfMonth, last), s.Hour, s.Minute, 0, 0, loc)
}
