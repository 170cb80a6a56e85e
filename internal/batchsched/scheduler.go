package batchsched

import (
	"fmt"
	"sync"
	"time"
)

// RunFunc submits one schedule's plans as a fresh orchestrator session.
// The caller supplies this; batchsched only decides when to call it.
type RunFunc func(ScheduleConfig) error

// Scheduler tracks due schedules and dispatches RunFunc for each,
// never running the same schedule concurrently with itself.
type Scheduler struct {
	configs map[string]ScheduleConfig
	lastRun map[string]time.Time
	running map[string]bool
	mu      sync.RWMutex
	stop    chan struct{}
}

// NewScheduler validates and registers every schedule.
func NewScheduler(configs []ScheduleConfig) (*Scheduler, error) {
	s := &Scheduler{
		configs: make(map[string]ScheduleConfig),
		lastRun: make(map[string]time.Time),
		running: make(map[string]bool),
		stop:    make(chan struct{}),
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		s.configs[cfg.Name] = cfg
	}
	return s, nil
}

// NextRun returns the next time a named schedule will fire.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[name]
	if !ok {
		return time.Time{}
	}
	sched, err := ParseCron(cfg.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// ShouldRun reports whether name is due now and not already running.
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[name]
	if !ok || s.running[name] {
		return false
	}

	sched, err := ParseCron(cfg.Cron)
	if err != nil {
		return false
	}

	last := s.lastRun[name]
	if last.IsZero() {
		last = time.Now().Add(-24 * time.Hour)
	}
	return time.Now().After(sched.Next(last))
}

// MarkRunning flags a schedule as in flight.
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

// MarkComplete clears the in-flight flag and records the run time.
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// GetConfig returns a named schedule's configuration.
func (s *Scheduler) GetConfig(name string) (ScheduleConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	return cfg, ok
}

// ListSchedules returns every configured schedule's name.
func (s *Scheduler) ListSchedules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	return names
}

// Start polls every minute for due schedules and dispatches run for
// each, marking it running for the duration and recording completion
// regardless of run's outcome. Blocks until Stop is called.
func (s *Scheduler) Start(run RunFunc) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.fireDue(run)
		}
	}
}

func (s *Scheduler) fireDue(run RunFunc) {
	// s.configs is populated once in NewScheduler and never written
	// again, so ranging over it here needs no lock; ShouldRun takes its
	// own RLock per call. Locking around this loop would self-deadlock:
	// ShouldRun already RLocks, and RWMutex does not permit recursive
	// RLock across a pending Lock (MarkRunning/MarkComplete on a
	// dispatched run).
	var due []string
	for name := range s.configs {
		if s.ShouldRun(name) {
			due = append(due, name)
		}
	}

	for _, name := range due {
		cfg, ok := s.GetConfig(name)
		if !ok {
			continue
		}
		s.MarkRunning(name)
		go func(c ScheduleConfig) {
			defer s.MarkComplete(c.Name)
			if err := run(c); err != nil {
				fmt.Printf("schedule %s failed: %v\n", c.Name, err)
			}
		}(cfg)
	}
}

// Stop ends the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}
