// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package store

import "time"

// SleepLocked reports whether switch-driven brightness increases on
// the group are currently rejected. Facade commands bypass this check.
func (s *Store) SleepLocked(groupID int, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gr, ok := s.groups[groupID]
	if !ok || !gr.Group.Sleep.Enabled {
		return false
	}
	if now.Before(gr.UnlockUntil) {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	start, end := gr.Group.Sleep.StartMinutes, gr.Group.Sleep.EndMinutes
	if start == end {
		return false
	}
	if start < end {
		return minutes >= start && minutes < end
	}
	// window wraps midnight
	return minutes >= start || minutes < end
}

// GrantSleepUnlock lifts the sleep lock for the group's configured
// unlock duration.
func (s *Store) GrantSleepUnlock(groupID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, ok := s.groups[groupID]
	if !ok {
		return false
	}
	gr.UnlockUntil = now.Add(time.Duration(gr.Group.Sleep.UnlockMinutes) * time.Minute)
	gr.LastUpdated = now
	s.dirty = true
	return true
}
