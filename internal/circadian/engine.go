// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package circadian resolves (brightness, CCT) from a time-of-day
// keyframe curve. A loaded profile is a pure function of wall-clock
// time; profiles can be hot-reloaded by replacing the cached keyframe
// list atomically under the engine lock.
package circadian

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"tau-daemon/internal/model"
)

const secondsPerDay = 86400

// Interpolation selects how values move between keyframes
type Interpolation string

const (
	InterpLinear Interpolation = "linear"
	InterpCosine Interpolation = "cosine"
	InterpStep   Interpolation = "step"
)

// Keyframe is one (time-of-day, brightness, CCT) point
type Keyframe struct {
	Seconds    int // seconds since midnight
	Brightness float64
	CCT        int
}

// Profile is an ordered keyframe curve
type Profile struct {
	ID        int
	Name      string
	Interp    Interpolation
	Keyframes []Keyframe
}

// Engine caches loaded profiles and evaluates them
type Engine struct {
	mu       sync.RWMutex
	profiles map[int][]Keyframe
	interp   map[int]Interpolation

	calculations uint64
	loads        uint64

	logger *slog.Logger
}

// NewEngine creates an empty engine
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		profiles: make(map[int][]Keyframe),
		interp:   make(map[int]Interpolation),
		logger:   logger,
	}
}

// Load validates and caches a profile, replacing any previous version
func (e *Engine) Load(p Profile) error {
	if len(p.Keyframes) == 0 {
		return fmt.Errorf("profile %d: no keyframes", p.ID)
	}
	for _, kf := range p.Keyframes {
		if kf.Seconds < 0 || kf.Seconds >= secondsPerDay {
			return fmt.Errorf("profile %d: keyframe time %d out of range", p.ID, kf.Seconds)
		}
		if kf.Brightness < 0 || kf.Brightness > 1 {
			return fmt.Errorf("profile %d: %w", p.ID, model.ErrBrightnessRange)
		}
		if kf.CCT < 1000 || kf.CCT > 10000 {
			return fmt.Errorf("profile %d: %w", p.ID, model.ErrCCTRange)
		}
	}

	kfs := make([]Keyframe, len(p.Keyframes))
	copy(kfs, p.Keyframes)
	sort.Slice(kfs, func(i, j int) bool { return kfs[i].Seconds < kfs[j].Seconds })

	interp := p.Interp
	if interp == "" {
		interp = InterpLinear
	}

	e.mu.Lock()
	e.profiles[p.ID] = kfs
	e.interp[p.ID] = interp
	e.loads++
	e.mu.Unlock()

	e.logger.Info("circadian profile loaded",
		"profile", p.ID, "name", p.Name, "keyframes", len(kfs), "interpolation", interp)
	return nil
}

// Unload removes a cached profile
func (e *Engine) Unload(id int) {
	e.mu.Lock()
	delete(e.profiles, id)
	delete(e.interp, id)
	e.mu.Unlock()
}

// Loaded reports whether the profile is cached
func (e *Engine) Loaded(id int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.profiles[id]
	return ok
}

// Calculate evaluates a profile at the given wall-clock time
func (e *Engine) Calculate(profileID int, now time.Time) (float64, int, error) {
	e.mu.RLock()
	kfs, ok := e.profiles[profileID]
	interp := e.interp[profileID]
	e.mu.RUnlock()

	if !ok {
		return 0, 0, model.ErrUnknownProfile
	}

	e.mu.Lock()
	e.calculations++
	e.mu.Unlock()

	s := now.Hour()*3600 + now.Minute()*60 + now.Second()
	prev, next := surrounding(kfs, s)
	return interpolate(prev, next, s, interp), interpolateCCT(prev, next, s, interp), nil
}

// surrounding locates the keyframe pair bracketing s, wrapping across
// midnight when s precedes the first keyframe or follows the last.
func surrounding(kfs []Keyframe, s int) (Keyframe, Keyframe) {
	if s < kfs[0].Seconds || s >= kfs[len(kfs)-1].Seconds {
		return kfs[len(kfs)-1], kfs[0]
	}
	for i := 0; i < len(kfs)-1; i++ {
		if kfs[i].Seconds <= s && s < kfs[i+1].Seconds {
			return kfs[i], kfs[i+1]
		}
	}
	return kfs[0], kfs[0]
}

// factor computes the normalised position of s between the two
// keyframes, unwrapping the midnight boundary.
func factor(prev, next Keyframe, s int) float64 {
	ps, ns := prev.Seconds, next.Seconds
	if ns <= ps {
		ns += secondsPerDay
		if s < ps {
			s += secondsPerDay
		}
	}
	if ns == ps {
		return 0
	}
	f := float64(s-ps) / float64(ns-ps)
	return math.Max(0, math.Min(1, f))
}

func shape(f float64, interp Interpolation) float64 {
	switch interp {
	case InterpCosine:
		return (1 - math.Cos(math.Pi*f)) / 2
	case InterpStep:
		return 0 // hold the previous keyframe until the next one
	default:
		return f
	}
}

func interpolate(prev, next Keyframe, s int, interp Interpolation) float64 {
	f := shape(factor(prev, next, s), interp)
	return prev.Brightness + f*(next.Brightness-prev.Brightness)
}

func interpolateCCT(prev, next Keyframe, s int, interp Interpolation) int {
	f := shape(factor(prev, next, s), interp)
	return int(math.Round(float64(prev.CCT) + f*float64(next.CCT-prev.CCT)))
}

// Stats returns engine counters
func (e *Engine) Stats() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]any{
		"profiles_loaded": len(e.profiles),
		"calculations":    e.calculations,
		"profile_loads":   e.loads,
	}
}
