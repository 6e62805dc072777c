// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package controller

import (
	"time"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
)

// ControlOpts shapes a facade-initiated transition
type ControlOpts struct {
	DurationSeconds *float64
	Easing          string
	Proportional    bool
}

func (c *Controller) transitionOpts(opts ControlOpts) store.TransitionOpts {
	out := store.TransitionOpts{Proportional: opts.Proportional}
	if opts.DurationSeconds != nil {
		d := time.Duration(*opts.DurationSeconds * float64(time.Second))
		out.Duration = &d
	}
	if opts.Easing != "" {
		out.Easing = easingOrDefault(opts.Easing)
	}
	return out
}

// Registration operations: the out-of-core CRUD layer calls these so
// its edits reach the runtime model.

// RegisterFixture adds a fixture at runtime
func (c *Controller) RegisterFixture(f model.Fixture) error {
	if err := c.store.RegisterFixture(f); err != nil {
		return err
	}
	c.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": f.ID, "registered": true})
	return nil
}

// UnregisterFixture removes a fixture at runtime
func (c *Controller) UnregisterFixture(id int) {
	c.store.UnregisterFixture(id)
	c.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": id, "registered": false})
}

// RegisterGroup adds a group at runtime
func (c *Controller) RegisterGroup(g model.Group) error {
	return c.store.RegisterGroup(g)
}

// UnregisterGroup removes a group at runtime
func (c *Controller) UnregisterGroup(id int) {
	c.store.UnregisterGroup(id)
	delete(c.lastCircadian, id)
}

// AddFixtureToGroup links a fixture into a group
func (c *Controller) AddFixtureToGroup(fixtureID, groupID int) error {
	return c.store.AddFixtureToGroup(fixtureID, groupID)
}

// RemoveFixtureFromGroup unlinks a fixture from a group
func (c *Controller) RemoveFixtureFromGroup(fixtureID, groupID int) error {
	return c.store.RemoveFixtureFromGroup(fixtureID, groupID)
}

// SetFixtureBrightness is the facade fixture-brightness operation. A
// fixture commanded individually while grouped gets a brightness
// override so the group layers stop masking it.
func (c *Controller) SetFixtureBrightness(id int, goal float64, opts ControlOpts) error {
	if err := c.store.SetFixtureBrightness(id, goal, c.transitionOpts(opts)); err != nil {
		return err
	}

	if len(c.store.GroupsOf(id)) > 0 && goal > 0 {
		now := c.clock.Now()
		c.store.PutOverride(model.Override{
			Key:       model.OverrideKey{TargetType: model.TargetFixture, TargetID: id, Property: model.PropertyBrightness},
			Value:     goal,
			CreatedAt: now,
			ExpiresAt: now.Add(c.overrideTimeout()),
			Source:    "api",
		})
	}

	c.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": id, "brightness": goal, "source": "api"})
	return nil
}

// SetFixtureCCT is the facade fixture-CCT operation. Manual CCT while
// dim-to-warm or circadian is active pins the value with an override.
func (c *Controller) SetFixtureCCT(id int, goal float64, opts ControlOpts) error {
	if err := c.store.SetFixtureColorTemp(id, goal, c.transitionOpts(opts)); err != nil {
		return err
	}

	now := c.clock.Now()
	c.store.PutOverride(model.Override{
		Key:       model.OverrideKey{TargetType: model.TargetFixture, TargetID: id, Property: model.PropertyCCT},
		Value:     goal,
		CreatedAt: now,
		ExpiresAt: now.Add(c.overrideTimeout()),
		Source:    "api",
	})

	c.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": id, "cct": goal, "source": "api"})
	return nil
}

// SetGroupBrightness is the facade group-brightness operation
func (c *Controller) SetGroupBrightness(id int, goal float64) error {
	if err := c.store.SetGroupBrightness(id, goal); err != nil {
		return err
	}
	c.bcast.Publish(broadcast.GroupStateChanged, map[string]any{"group_id": id, "brightness": goal, "source": "api"})
	return nil
}

// SetGroupCCT is the facade group-CCT operation
func (c *Controller) SetGroupCCT(id int, goal float64) error {
	if err := c.store.SetGroupColorTemp(id, goal, store.TransitionOpts{Proportional: true}); err != nil {
		return err
	}

	now := c.clock.Now()
	c.store.PutOverride(model.Override{
		Key:       model.OverrideKey{TargetType: model.TargetGroup, TargetID: id, Property: model.PropertyCCT},
		Value:     goal,
		CreatedAt: now,
		ExpiresAt: now.Add(c.overrideTimeout()),
		Source:    "api",
	})

	c.bcast.Publish(broadcast.GroupStateChanged, map[string]any{"group_id": id, "cct": goal, "source": "api"})
	return nil
}

// EnableCircadian turns circadian automation on for a group
func (c *Controller) EnableCircadian(groupID int) error {
	if err := c.store.SetCircadianEnabled(groupID, true); err != nil {
		return err
	}
	c.bcast.Publish(broadcast.CircadianChanged, map[string]any{"group_id": groupID, "enabled": true})
	// recompute immediately rather than waiting an interval
	return c.circadianTick()
}

// DisableCircadian turns circadian automation off for a group
func (c *Controller) DisableCircadian(groupID int) error {
	if err := c.store.SetCircadianEnabled(groupID, false); err != nil {
		return err
	}
	delete(c.lastCircadian, groupID)
	c.bcast.Publish(broadcast.CircadianChanged, map[string]any{"group_id": groupID, "enabled": false})
	return nil
}

// ReloadCircadianProfile replaces a cached profile definition
func (c *Controller) ReloadCircadianProfile(id int) error {
	for _, p := range c.cfg.BuildProfiles() {
		if p.ID == id {
			return c.circ.Load(p)
		}
	}
	return model.ErrUnknownProfile
}

// RecallScene recalls a scene through the scene engine
func (c *Controller) RecallScene(id int) error {
	return c.scenes.Recall(id)
}

// CaptureScene snapshots current goals into a new scene
func (c *Controller) CaptureScene(name string, fixtureIDs, includeGroups, excludeFixtures, excludeGroups []int) (int, error) {
	return c.scenes.Capture(name, fixtureIDs, includeGroups, excludeFixtures, excludeGroups)
}

// AllOff drives every fixture to zero and clears all overrides
func (c *Controller) AllOff() error {
	for _, id := range c.store.FixtureIDs() {
		if err := c.store.SetFixtureBrightness(id, 0, store.TransitionOpts{Proportional: true}); err != nil {
			return err
		}
		c.store.ClearTargetOverrides(model.TargetFixture, id)
	}
	for _, gid := range c.store.GroupIDs() {
		c.store.ClearTargetOverrides(model.TargetGroup, gid)
	}
	c.bcast.Publish(broadcast.SystemStatus, map[string]any{"event": "all_off"})
	return nil
}

// PanicAllOn drives every fixture to full brightness instantly
func (c *Controller) PanicAllOn() error {
	for _, id := range c.store.FixtureIDs() {
		if err := c.store.SetFixtureBrightness(id, 1, store.Instant); err != nil {
			return err
		}
	}
	for _, gid := range c.store.GroupIDs() {
		if err := c.store.SetGroupBrightness(gid, 1); err != nil {
			return err
		}
	}
	c.bcast.Publish(broadcast.SystemStatus, map[string]any{"event": "panic_all_on"})
	return nil
}

// GrantSleepUnlock lifts a group's sleep lock for its unlock duration
func (c *Controller) GrantSleepUnlock(groupID int) error {
	if !c.store.GrantSleepUnlock(groupID, c.clock.Now()) {
		return model.ErrUnknownGroup
	}
	return nil
}

// SetDimSpeedMs hot-reloads the hold-dimming speed
func (c *Controller) SetDimSpeedMs(ms int) {
	c.settings.mu.Lock()
	c.settings.dimSpeedMs = ms
	c.settings.mu.Unlock()
	c.switches.SetDimSpeedMs(ms)
}

// Stats aggregates every subsystem's counters
func (c *Controller) Stats() map[string]any {
	out := map[string]any{
		"loop":      c.loop.Stats(),
		"scheduler": c.sched.Stats(),
		"state":     c.store.Stats(),
		"hardware":  c.hw.Status(),
		"dmx":       c.out.Stats(),
		"switches":  c.switches.Stats(),
		"circadian": c.circ.Stats(),
		"broadcast": c.bcast.Stats(),
		"discovery": c.discovery.Stats(),
	}
	if c.persist != nil {
		out["persistence"] = c.persist.Stats()
	}
	return out
}
