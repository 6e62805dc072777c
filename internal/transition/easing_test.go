// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package transition

import (
	"testing"
	"time"
)

var allEasings = []Easing{Linear, EaseIn, EaseOut, EaseInOut, EaseInCubic, EaseOutCubic, EaseInOutCubic}

func TestEasingEndpoints(t *testing.T) {
	for _, e := range allEasings {
		if got := e.Apply(0); got != 0 {
			t.Errorf("%s: Apply(0) = %f, want 0", e, got)
		}
		if got := e.Apply(1); got != 1 {
			t.Errorf("%s: Apply(1) = %f, want 1", e, got)
		}
		if got := e.Apply(-0.5); got != 0 {
			t.Errorf("%s: Apply(-0.5) = %f, want 0", e, got)
		}
		if got := e.Apply(1.5); got != 1 {
			t.Errorf("%s: Apply(1.5) = %f, want 1", e, got)
		}
	}
}

func TestEasingMonotone(t *testing.T) {
	const steps = 100
	for _, e := range allEasings {
		prev := e.Apply(0)
		for i := 1; i <= steps; i++ {
			cur := e.Apply(float64(i) / steps)
			if cur < prev {
				t.Errorf("%s: not monotone at t=%f (%f < %f)", e, float64(i)/steps, cur, prev)
			}
			prev = cur
		}
	}
}

func TestEasingMidpoints(t *testing.T) {
	cases := []struct {
		easing Easing
		t      float64
		want   float64
	}{
		{Linear, 0.5, 0.5},
		{EaseIn, 0.5, 0.25},
		{EaseOut, 0.5, 0.75},
		{EaseInOut, 0.5, 0.5},
		{EaseInCubic, 0.5, 0.125},
		{EaseOutCubic, 0.5, 0.875},
		{EaseInOutCubic, 0.5, 0.5},
	}
	for _, tc := range cases {
		if got := tc.easing.Apply(tc.t); !close(got, tc.want) {
			t.Errorf("%s: Apply(%f) = %f, want %f", tc.easing, tc.t, got, tc.want)
		}
	}
}

func TestParseEasing(t *testing.T) {
	if _, err := ParseEasing("ease_in_out"); err != nil {
		t.Errorf("ease_in_out should parse: %v", err)
	}
	if _, err := ParseEasing("bounce"); err == nil {
		t.Error("bounce should not parse")
	}
}

func TestTransitionValue(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var tr Transition
	tr.Begin(0, 1, time.Second, Linear, start)

	v, done := tr.Value(start.Add(500 * time.Millisecond))
	if !close(v, 0.5) || done {
		t.Errorf("midpoint = %f done=%v, want 0.5 false", v, done)
	}

	v, done = tr.Value(start.Add(time.Second))
	if v != 1 || !done {
		t.Errorf("endpoint = %f done=%v, want 1 true", v, done)
	}
	if tr.Active {
		t.Error("transition should deactivate at completion")
	}
}

func TestTransitionZeroDurationStaysIdle(t *testing.T) {
	var tr Transition
	tr.Begin(0, 1, 0, Linear, time.Now())
	if tr.Active {
		t.Error("zero-duration Begin must leave the transition idle")
	}
}

func TestTransitionRetarget(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var tr Transition
	tr.Begin(0, 1, time.Second, Linear, start)

	mid := start.Add(500 * time.Millisecond)
	v, _ := tr.Value(mid)
	tr.Begin(v, 0, time.Second, Linear, mid)

	v2, _ := tr.Value(mid.Add(time.Second))
	if v2 != 0 {
		t.Errorf("retargeted transition endpoint = %f, want 0", v2)
	}
}

func close(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
