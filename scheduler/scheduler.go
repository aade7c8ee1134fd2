package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	weekly  map[string]*weeklyEntry
	logger  *zap.Logger
	stopCh  chan struct{}
}

type tickerEntry struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		weekly:  make(map[string]*weeklyEntry),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing.
	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		for {
			select {
			case <-entry.ticker.C:
				s.run(name, fn)
			case <-entry.stopCh:
				entry.ticker.Stop()
				return
			case <-s.stopCh:
				entry.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("delay task panicked",
					zap.String("task", name), zap.Any("recover", r))
			}
			s.mu.Lock()
			delete(s.timers, name)
			s.mu.Unlock()
		}()
		fn()
	})
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	if w, ok := s.weekly[name]; ok {
		close(w.stopCh)
		delete(s.weekly, name)
	}
}

// Stop stops all tasks.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// ListTickers returns the sorted names of all registered ticker and weekly tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers)+len(s.weekly))
	for name := range s.tickers {
		names = append(names, name)
	}
	for name := range s.weekly {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

type weeklyEntry struct {
	stopCh chan struct{}
	next   time.Time
}

// AddWeekly runs fn every week at the given weekday and local wall-clock time.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddWeekly(name string, day time.Weekday, hour, minute int, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.weekly[name]; ok {
		close(old.stopCh)
	}
	entry := &weeklyEntry{stopCh: make(chan struct{})}
	entry.next = NextWeekly(time.Now(), day, hour, minute)
	s.weekly[name] = entry

	go func() {
		for {
			s.mu.Lock()
			next := entry.next
			s.mu.Unlock()

			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				s.run(name, fn)
				s.mu.Lock()
				entry.next = NextWeekly(time.Now(), day, hour, minute)
				s.mu.Unlock()
			case <-entry.stopCh:
				timer.Stop()
				return
			case <-s.stopCh:
				timer.Stop()
				return
			}
		}
	}()
	s.logger.Info("weekly task registered", zap.String("name", name),
		zap.Stringer("weekday", day), zap.Time("next", entry.next))
}

// NextRun returns the next scheduled time of a weekly task.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.weekly[name]
	if !ok {
		return time.Time{}, false
	}
	return w.next, true
}

// NextWeekly returns the first instant strictly after now that falls on day
// at hour:minute in now's location.
func NextWeekly(now time.Time, day time.Weekday, hour, minute int) time.Time {
	y, m, d := now.Date()
	candidate := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// ParseWeekday accepts English weekday names ("monday", "Mon").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || (len(s) >= 3 && strings.HasPrefix(full, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("scheduler: unknown weekday %q", s)
}
