package match

import (
	"sync"
	"time"
)

// Task is a scheduled callback owned by a Scheduler
type Task struct {
	name      string
	seq       uint64
	due       time.Time
	interval  time.Duration // zero for one-shot tasks
	fn        func(now time.Time)
	cancelled bool
}

// Name returns the label the task was scheduled with
func (t *Task) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Cancel stops the task from running again. Safe on nil and safe to repeat.
func (t *Task) Cancel() {
	if t != nil {
		t.cancelled = true
	}
}

// Active reports whether the task will still run
func (t *Task) Active() bool {
	return t != nil && !t.cancelled
}

// Scheduler runs one-shot and periodic callbacks against a clock that only
// moves when Advance is called. Only the tick goroutine may schedule or
// advance; Now may be read from anywhere.
type Scheduler struct {
	clock sync.RWMutex
	now   time.Time
	seq   uint64
	tasks []*Task
}

// NewScheduler creates a scheduler whose clock starts at start
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Now returns the scheduler clock
func (s *Scheduler) Now() time.Time {
	s.clock.RLock()
	defer s.clock.RUnlock()
	return s.now
}

func (s *Scheduler) setNow(now time.Time) {
	s.clock.Lock()
	s.now = now
	s.clock.Unlock()
}

// After schedules fn once, delay from now
func (s *Scheduler) After(name string, delay time.Duration, fn func(now time.Time)) *Task {
	return s.add(name, delay, 0, fn)
}

// Every schedules fn every interval, first run one interval from now
func (s *Scheduler) Every(name string, interval time.Duration, fn func(now time.Time)) *Task {
	if interval <= 0 {
		interval = time.Second
	}
	return s.add(name, interval, interval, fn)
}

func (s *Scheduler) add(name string, delay, interval time.Duration, fn func(time.Time)) *Task {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &Task{
		name:     name,
		seq:      s.seq,
		due:      s.now.Add(delay),
		interval: interval,
		fn:       fn,
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock to now, running every task that falls due on the
// way in due-time order. Each task sees its own due time as the clock, so a
// large jump replays every intermediate run of a periodic task. Tasks may
// schedule or cancel other tasks while running.
func (s *Scheduler) Advance(now time.Time) {
	for {
		next := s.nextDue(now)
		if next == nil {
			break
		}
		due := next.due
		s.setNow(due)
		if next.interval > 0 {
			next.due = due.Add(next.interval)
		} else {
			next.cancelled = true
		}
		next.fn(due)
	}
	if now.After(s.now) {
		s.setNow(now)
	}
	s.compact()
}

// nextDue returns the earliest live task due at or before limit
func (s *Scheduler) nextDue(limit time.Time) *Task {
	var best *Task
	for _, t := range s.tasks {
		if t.cancelled || t.due.After(limit) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (s *Scheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}

// Pending returns the number of live tasks
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// CancelAll cancels every task. Safe to repeat.
func (s *Scheduler) CancelAll() {
	for _, t := range s.tasks {
		t.cancelled = true
	}
	s.compact()
}
