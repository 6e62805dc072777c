// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestCallbacksRunInOrder(t *testing.T) {
	l := New(30, nil, testLogger())

	var order []string
	l.Register("inputs", func() error { order = append(order, "inputs"); return nil })
	l.Register("advance", func() error { order = append(order, "advance"); return nil })
	l.Register("output", func() error { order = append(order, "output"); return nil })

	l.RunIteration()

	if len(order) != 3 || order[0] != "inputs" || order[1] != "advance" || order[2] != "output" {
		t.Errorf("callback order = %v", order)
	}
}

func TestCallbackErrorDoesNotStopIteration(t *testing.T) {
	l := New(30, nil, testLogger())

	ran := false
	l.Register("failing", func() error { return errors.New("boom") })
	l.Register("after", func() error { ran = true; return nil })

	l.RunIteration()

	if !ran {
		t.Error("a failing callback must not stop later callbacks")
	}
	if l.Stats().Iterations != 1 {
		t.Errorf("iterations = %d, want 1", l.Stats().Iterations)
	}
}

func TestCallbackPanicContained(t *testing.T) {
	l := New(30, nil, testLogger())

	ran := false
	l.Register("panicking", func() error { panic("boom") })
	l.Register("after", func() error { ran = true; return nil })

	l.RunIteration()

	if !ran {
		t.Error("a panicking callback must not stop the iteration")
	}
}

func TestIterationTicksScheduler(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(t0)
	s := NewScheduler(clk, testLogger())
	runs := 0
	s.Schedule("t", time.Second, true, func() error { runs++; return nil })

	l := New(30, s, testLogger())
	l.RunIteration()

	if runs != 1 {
		t.Errorf("scheduler runs = %d, want 1 (loop must tick the scheduler)", runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(100, nil, testLogger())
	l.Register("noop", func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	if l.Stats().Iterations == 0 {
		t.Error("loop should have iterated before cancellation")
	}
}

func TestStatsTrackTiming(t *testing.T) {
	l := New(30, nil, testLogger())
	l.Register("sleepy", func() error { time.Sleep(time.Millisecond); return nil })

	l.RunIteration()
	l.RunIteration()

	st := l.Stats()
	if st.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", st.Iterations)
	}
	if st.MinTime <= 0 || st.MaxTime < st.MinTime {
		t.Errorf("timing stats inconsistent: min=%v max=%v", st.MinTime, st.MaxTime)
	}
}
