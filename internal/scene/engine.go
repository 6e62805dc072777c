// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package scene recalls and captures static lighting presets. Recall
// drives the included fixtures through normal transitions; capture
// snapshots current goals with include/exclude filtering.
package scene

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
)

// Saver persists captured scenes; nil disables persistence
type Saver interface {
	SaveScene(model.Scene) error
}

// Engine manages the scene registry
type Engine struct {
	store *store.Store
	bcast *broadcast.Broadcaster
	clock clock.PassiveClock
	saver Saver

	mu     sync.RWMutex
	scenes map[int]*model.Scene

	overrideTimeout func() time.Duration

	logger *slog.Logger
}

// New creates a scene engine
func New(st *store.Store, bcast *broadcast.Broadcaster, clk clock.PassiveClock, saver Saver, overrideTimeout func() time.Duration, logger *slog.Logger) *Engine {
	if overrideTimeout == nil {
		overrideTimeout = func() time.Duration { return 8 * time.Hour }
	}
	return &Engine{
		store:           st,
		bcast:           bcast,
		clock:           clk,
		saver:           saver,
		scenes:          make(map[int]*model.Scene),
		overrideTimeout: overrideTimeout,
		logger:          logger,
	}
}

// Register adds or replaces a scene definition
func (e *Engine) Register(s model.Scene) {
	if s.Type == "" {
		s.Type = model.SceneRecall
	}
	cp := s
	cp.Values = append([]model.SceneValue(nil), s.Values...)

	e.mu.Lock()
	e.scenes[s.ID] = &cp
	e.mu.Unlock()
}

// Unregister removes a scene
func (e *Engine) Unregister(id int) {
	e.mu.Lock()
	delete(e.scenes, id)
	e.mu.Unlock()
}

// Get returns a scene by id
func (e *Engine) Get(id int) (model.Scene, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.scenes[id]
	if !ok {
		return model.Scene{}, false
	}
	return *s, true
}

// Scenes returns all scenes ordered by display order then id
func (e *Engine) Scenes() []model.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Scene, 0, len(e.scenes))
	for _, s := range e.scenes {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Recall drives every fixture in the scene to its stored values. A
// toggle scene recalled while it is the scope group's active scene
// turns those fixtures off instead.
func (e *Engine) Recall(id int) error {
	e.mu.RLock()
	s, ok := e.scenes[id]
	e.mu.RUnlock()
	if !ok {
		return model.ErrUnknownScene
	}

	now := e.clock.Now()
	toggleOff := false
	if s.Type == model.SceneToggle && s.ScopeGroupID > 0 {
		if gr, ok := e.store.GroupState(s.ScopeGroupID); ok && gr.LastActiveSceneID == id {
			toggleOff = anyOn(e.store, s.Values)
		}
	}

	for _, v := range s.Values {
		brightness := v.Brightness
		if toggleOff {
			brightness = 0
		}
		if err := e.store.SetFixtureBrightness(v.FixtureID, brightness, store.TransitionOpts{Proportional: true}); err != nil {
			e.logger.Warn("scene recall skipped fixture", "scene", id, "fixture", v.FixtureID, "error", err)
			continue
		}
		if v.CCT > 0 && !toggleOff {
			if err := e.store.SetFixtureColorTemp(v.FixtureID, float64(v.CCT), store.TransitionOpts{Proportional: true}); err != nil {
				e.logger.Warn("scene recall skipped CCT", "scene", id, "fixture", v.FixtureID, "error", err)
			}
		}

		e.refreshOverrides(v, toggleOff, now)
	}

	if s.ScopeGroupID > 0 {
		if toggleOff {
			e.store.SetLastActiveScene(s.ScopeGroupID, 0)
		} else {
			e.store.SetLastActiveScene(s.ScopeGroupID, id)
		}
	}

	e.bcast.Publish(broadcast.SceneRecalled, map[string]any{"scene_id": id, "name": s.Name})
	e.logger.Info("scene recalled", "scene", id, "name", s.Name, "fixtures", len(s.Values), "toggled_off", toggleOff)
	return nil
}

// refreshOverrides pins recalled values against group/circadian drift
func (e *Engine) refreshOverrides(v model.SceneValue, toggleOff bool, now time.Time) {
	if toggleOff {
		e.store.ClearTargetOverrides(model.TargetFixture, v.FixtureID)
		return
	}

	timeout := e.overrideTimeout()
	e.store.PutOverride(model.Override{
		Key: model.OverrideKey{
			TargetType: model.TargetFixture,
			TargetID:   v.FixtureID,
			Property:   model.PropertyBrightness,
		},
		Value:     v.Brightness,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
		Source:    "scene",
	})
	if v.CCT > 0 {
		e.store.PutOverride(model.Override{
			Key: model.OverrideKey{
				TargetType: model.TargetFixture,
				TargetID:   v.FixtureID,
				Property:   model.PropertyCCT,
			},
			Value:     float64(v.CCT),
			CreatedAt: now,
			ExpiresAt: now.Add(timeout),
			Source:    "scene",
		})
	}
}

func anyOn(st *store.Store, values []model.SceneValue) bool {
	for _, v := range values {
		if fr, ok := st.FixtureState(v.FixtureID); ok && fr.GoalBrightness > 0 {
			return true
		}
	}
	return false
}

// Capture snapshots current fixture goals into a new scene. The
// selection starts from fixtureIDs plus the members of includeGroups
// (all fixtures when both are empty), then removes the members of
// excludeGroups and the excludeFixtures. Excluded groups win over
// includes.
func (e *Engine) Capture(name string, fixtureIDs, includeGroups, excludeFixtures, excludeGroups []int) (int, error) {
	selected := make(map[int]struct{})

	if len(fixtureIDs) == 0 && len(includeGroups) == 0 {
		for _, id := range e.store.FixtureIDs() {
			selected[id] = struct{}{}
		}
	} else {
		for _, id := range fixtureIDs {
			selected[id] = struct{}{}
		}
		for _, gid := range includeGroups {
			for _, id := range e.store.MembersOf(gid) {
				selected[id] = struct{}{}
			}
		}
	}

	for _, gid := range excludeGroups {
		for _, id := range e.store.MembersOf(gid) {
			delete(selected, id)
		}
	}
	for _, id := range excludeFixtures {
		delete(selected, id)
	}

	if len(selected) == 0 {
		return 0, fmt.Errorf("capture %q: no fixtures selected", name)
	}

	ids := make([]int, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	values := make([]model.SceneValue, 0, len(ids))
	for _, id := range ids {
		fr, ok := e.store.FixtureState(id)
		if !ok {
			continue
		}
		values = append(values, model.SceneValue{
			FixtureID:  id,
			Brightness: fr.GoalBrightness,
			CCT:        int(fr.GoalCCT),
		})
	}

	e.mu.Lock()
	id := e.nextIDLocked()
	s := &model.Scene{ID: id, Name: name, Type: model.SceneRecall, Values: values}
	e.scenes[id] = s
	e.mu.Unlock()

	if e.saver != nil {
		if err := e.saver.SaveScene(*s); err != nil {
			e.logger.Error("scene capture not persisted", "scene", id, "error", err)
		}
	}

	e.bcast.Publish(broadcast.SceneCaptured, map[string]any{"scene_id": id, "name": name, "fixtures": len(values)})
	e.logger.Info("scene captured", "scene", id, "name", name, "fixtures", len(values))
	return id, nil
}

func (e *Engine) nextIDLocked() int {
	max := 0
	for id := range e.scenes {
		if id > max {
			max = id
		}
	}
	return max + 1
}
