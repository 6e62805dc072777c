// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package store

import (
	"time"

	"tau-daemon/internal/model"
	"tau-daemon/internal/transition"
)

// FixtureRuntime is the live state of one fixture. Current values are
// what the DMX encoder reads; goal values are where transitions are
// heading.
type FixtureRuntime struct {
	Fixture model.Fixture

	CurrentBrightness float64
	GoalBrightness    float64
	CurrentCCT        float64
	GoalCCT           float64

	BrightnessTransition transition.Transition
	CCTTransition        transition.Transition

	// LastNonZeroBrightness is what a toggle-on restores
	LastNonZeroBrightness float64

	// Last emitted DMX tuple and when it was written; nil until the
	// first write. Updated only when a write actually occurred.
	LastTuple     []uint8
	LastWriteTime time.Time

	LastUpdated time.Time
}

// GroupRuntime is the live state of one group
type GroupRuntime struct {
	Group model.Group

	// Brightness is the group multiplier layered over member fixtures
	Brightness float64

	CircadianActive     bool // a circadian value has been computed
	CircadianBrightness float64
	CircadianCCT        int
	CircadianSuspended  bool

	LastActiveSceneID int

	// UnlockUntil lifts the sleep lock when in the future
	UnlockUntil time.Time

	LastUpdated time.Time
}

// snapshotFixture returns a copy safe to hand outside the lock
func snapshotFixture(fr *FixtureRuntime) FixtureRuntime {
	cp := *fr
	if fr.LastTuple != nil {
		cp.LastTuple = append([]uint8(nil), fr.LastTuple...)
	}
	return cp
}
