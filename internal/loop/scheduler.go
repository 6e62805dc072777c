// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package loop

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// task is one named periodic job
type task struct {
	name           string
	fn             func() error
	interval       time.Duration
	lastRun        time.Time
	runImmediately bool
	hasRun         bool

	runs      uint64
	errors    uint64
	totalTime time.Duration
}

// TaskStats is a snapshot of one task's counters
type TaskStats struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      uint64        `json:"runs"`
	Errors    uint64        `json:"errors"`
	AvgTime   time.Duration `json:"avg_time"`
	TotalTime time.Duration `json:"total_time"`
	LastRun   time.Time     `json:"last_run"`
}

// Scheduler runs named periodic tasks between control-loop ticks.
// Tasks execute inline on the ticking goroutine, so two invocations of
// the same task can never overlap.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	clock  clock.PassiveClock
	logger *slog.Logger
}

// NewScheduler creates an empty scheduler
func NewScheduler(clk clock.PassiveClock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*task),
		clock:  clk,
		logger: logger,
	}
}

// Schedule registers a periodic task. A task scheduled with
// runImmediately fires on the first tick; otherwise the first run is
// one interval out.
func (s *Scheduler) Schedule(name string, interval time.Duration, runImmediately bool, fn func() error) error {
	if interval <= 0 {
		return fmt.Errorf("task %q: non-positive interval", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %q already scheduled", name)
	}

	t := &task{
		name:           name,
		fn:             fn,
		interval:       interval,
		runImmediately: runImmediately,
	}
	if !runImmediately {
		t.lastRun = s.clock.Now()
		t.hasRun = true
	}
	s.tasks[name] = t

	s.logger.Info("task scheduled", "task", name, "interval", interval, "run_immediately", runImmediately)
	return nil
}

// Unschedule removes a task
func (s *Scheduler) Unschedule(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; !ok {
		return false
	}
	delete(s.tasks, name)
	s.logger.Info("task unscheduled", "task", name)
	return true
}

// Tick runs every due task. Called on each control-loop iteration.
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if !t.hasRun || now.Sub(t.lastRun) >= t.interval {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })

	for _, t := range due {
		start := s.clock.Now()

		// stamp the start before running so a task can never see itself
		// as due again mid-execution
		s.mu.Lock()
		t.lastRun = start
		t.hasRun = true
		s.mu.Unlock()

		err := t.fn()
		elapsed := s.clock.Now().Sub(start)

		s.mu.Lock()
		t.runs++
		t.totalTime += elapsed
		if err != nil {
			t.errors++
		}
		interval := t.interval
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("scheduled task failed", "task", t.name, "error", err)
		}
		if elapsed > interval*8/10 {
			s.logger.Warn("slow scheduled task",
				"task", t.name, "elapsed", elapsed, "interval", interval)
		}
	}
}

// Stats returns a snapshot of every task's counters
func (s *Scheduler) Stats() map[string]TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]TaskStats, len(s.tasks))
	for name, t := range s.tasks {
		st := TaskStats{
			Name:      t.name,
			Interval:  t.interval,
			Runs:      t.runs,
			Errors:    t.errors,
			TotalTime: t.totalTime,
			LastRun:   t.lastRun,
		}
		if t.runs > 0 {
			st.AvgTime = t.totalTime / time.Duration(t.runs)
		}
		out[name] = st
	}
	return out
}
