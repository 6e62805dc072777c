// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package loop is the fixed-frequency driver of the control core. One
// goroutine runs the tick pipeline and the scheduler; everything
// real-time happens here.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tau-daemon/internal/metrics"
)

// callback is one registered per-tick stage
type callback struct {
	name string
	fn   func() error
}

// Stats is a snapshot of loop timing counters
type Stats struct {
	Iterations uint64        `json:"iterations"`
	TotalTime  time.Duration `json:"total_time"`
	AvgTime    time.Duration `json:"avg_time"`
	MinTime    time.Duration `json:"min_time"`
	MaxTime    time.Duration `json:"max_time"`
	TargetTime time.Duration `json:"target_time"`
	Running    bool          `json:"running"`
}

// Loop drives registered callbacks at a fixed frequency, then ticks
// the scheduler. Callback panics and errors are logged, never fatal.
type Loop struct {
	interval  time.Duration
	callbacks []callback
	sched     *Scheduler
	logger    *slog.Logger

	mu         sync.Mutex
	running    bool
	iterations uint64
	totalTime  time.Duration
	minTime    time.Duration
	maxTime    time.Duration
}

// New creates a loop at the given frequency (default 30 Hz)
func New(frequencyHz int, sched *Scheduler, logger *slog.Logger) *Loop {
	if frequencyHz <= 0 {
		frequencyHz = 30
	}
	return &Loop{
		interval: time.Second / time.Duration(frequencyHz),
		sched:    sched,
		logger:   logger,
	}
}

// Register appends a per-tick callback. Callbacks run in registration
// order: inputs must be registered before outputs.
func (l *Loop) Register(name string, fn func() error) {
	l.callbacks = append(l.callbacks, callback{name: name, fn: fn})
	l.logger.Debug("loop callback registered", "callback", name)
}

// Run drives the loop until the context is cancelled. Iteration
// overrun is observed, not compensated: the loop simply sleeps for
// whatever remains of the period.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("loop already running")
	}
	l.running = true
	l.mu.Unlock()

	l.logger.Info("control loop started", "interval", l.interval)

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.logStatistics()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		start := time.Now()
		l.RunIteration()
		elapsed := time.Since(start)

		sleep := l.interval - elapsed
		if sleep < 0 {
			sleep = 0
		}

		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunIteration executes one full tick: callbacks in order, then the
// scheduler. Exposed for tests.
func (l *Loop) RunIteration() {
	start := time.Now()

	for _, cb := range l.callbacks {
		l.runCallback(cb)
	}
	if l.sched != nil {
		l.sched.Tick()
	}

	elapsed := time.Since(start)
	metrics.LoopIterationSeconds.Observe(elapsed.Seconds())

	l.mu.Lock()
	l.iterations++
	l.totalTime += elapsed
	if l.minTime == 0 || elapsed < l.minTime {
		l.minTime = elapsed
	}
	if elapsed > l.maxTime {
		l.maxTime = elapsed
	}
	l.mu.Unlock()

	if elapsed > l.interval {
		l.logger.Warn("slow loop iteration",
			"elapsed", elapsed, "target", l.interval, "overrun", elapsed-l.interval)
	}
}

// runCallback isolates one stage: a panic or error is contained
func (l *Loop) runCallback(cb callback) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", "callback", cb.name, "panic", r)
		}
	}()
	if err := cb.fn(); err != nil {
		l.logger.Error("loop callback failed", "callback", cb.name, "error", err)
	}
}

// Stats returns a snapshot of loop timing
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Stats{
		Iterations: l.iterations,
		TotalTime:  l.totalTime,
		MinTime:    l.minTime,
		MaxTime:    l.maxTime,
		TargetTime: l.interval,
		Running:    l.running,
	}
	if l.iterations > 0 {
		st.AvgTime = l.totalTime / time.Duration(l.iterations)
	}
	return st
}

func (l *Loop) logStatistics() {
	st := l.Stats()
	if st.Iterations == 0 {
		return
	}
	l.logger.Info("control loop statistics",
		"iterations", st.Iterations,
		"avg", st.AvgTime,
		"min", st.MinTime,
		"max", st.MaxTime,
		"target", st.TargetTime)
}
