// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package store

import (
	"time"

	"tau-daemon/internal/model"
)

// PutOverride installs an override, replacing any existing one for the
// same (target_type, target_id, property) key.
func (s *Store) PutOverride(o model.Override) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := o
	s.overrides[o.Key] = &cp
	s.dirty = true
}

// Override returns the active override for a key, if any
func (s *Store) Override(key model.OverrideKey) (model.Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[key]
	if !ok {
		return model.Override{}, false
	}
	return *o, true
}

// RemoveOverride deletes an override; removal is physical
func (s *Store) RemoveOverride(key model.OverrideKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[key]; !ok {
		return false
	}
	delete(s.overrides, key)
	s.dirty = true
	return true
}

// Overrides returns a copy of all active overrides
func (s *Store) Overrides() []model.Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Override, 0, len(s.overrides))
	for _, o := range s.overrides {
		out = append(out, *o)
	}
	return out
}

// OverrideCount returns the number of active overrides
func (s *Store) OverrideCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides)
}

// ExpireOverrides removes every override whose expiry has passed and
// returns the removed entries.
func (s *Store) ExpireOverrides(now time.Time) []model.Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []model.Override
	for key, o := range s.overrides {
		if o.Expired(now) {
			removed = append(removed, *o)
			delete(s.overrides, key)
		}
	}
	if len(removed) > 0 {
		s.dirty = true
	}
	return removed
}

// ClearTargetOverrides removes all overrides on a target (power-off
// clears) and returns how many were removed.
func (s *Store) ClearTargetOverrides(targetType model.TargetType, targetID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.overrides {
		if key.TargetType == targetType && key.TargetID == targetID {
			delete(s.overrides, key)
			n++
		}
	}
	if n > 0 {
		s.overridesCleared += uint64(n)
		s.dirty = true
	}
	return n
}

func (s *Store) clearFixtureOverridesLocked(fixtureID int) {
	for key := range s.overrides {
		if key.TargetType == model.TargetFixture && key.TargetID == fixtureID {
			delete(s.overrides, key)
			s.overridesCleared++
		}
	}
}

// OverridesCleared returns the lifetime count of cleared overrides
func (s *Store) OverridesCleared() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overridesCleared
}
