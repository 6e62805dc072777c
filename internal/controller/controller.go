// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package controller assembles the control core: it builds the state
// store and processing stages from configuration, registers the tick
// pipeline and scheduled tasks, and exposes the operations the facade
// adapters call.
package controller

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"log/slog"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/circadian"
	"tau-daemon/internal/compose"
	"tau-daemon/internal/config"
	"tau-daemon/internal/dmxout"
	"tau-daemon/internal/dtw"
	"tau-daemon/internal/hardware"
	"tau-daemon/internal/loop"
	"tau-daemon/internal/metrics"
	"tau-daemon/internal/model"
	"tau-daemon/internal/persist"
	"tau-daemon/internal/scene"
	"tau-daemon/internal/store"
	"tau-daemon/internal/switches"
)

// settings is the hot-reloadable slice of system settings
type settings struct {
	mu            sync.RWMutex
	dtw           dtw.Settings
	dedupeEnabled bool
	dedupeTTL     time.Duration
	tapWindow     time.Duration
	dimSpeedMs    int
}

// Controller owns the control core
type Controller struct {
	cfg    *config.Config
	clock  clock.PassiveClock
	logger *slog.Logger

	store     *store.Store
	hw        *hardware.Manager
	comp      *compose.Compositor
	out       *dmxout.Output
	switches  *switches.Handler
	discovery *switches.Discovery
	scenes    *scene.Engine
	circ      *circadian.Engine
	bcast     *broadcast.Broadcaster
	persist   *persist.Persistence
	sched     *loop.Scheduler
	loop      *loop.Loop

	settings settings

	// lastCircadian de-duplicates circadian_changed broadcasts
	lastCircadian map[int][2]float64
}

// New builds the core from configuration. The hardware manager and the
// durable store are constructed by the caller so startup failures can
// degrade rather than abort.
func New(cfg *config.Config, hw *hardware.Manager, db *persist.DB, clk clock.PassiveClock, logger *slog.Logger) *Controller {
	brightnessSweep, cctSweep, easing := cfg.Timing()

	st := store.New(store.Timing{
		BrightnessFullRange: brightnessSweep,
		CCTFullRange:        cctSweep,
		DefaultEasing:       easing,
	}, clk, logger)

	c := &Controller{
		cfg:           cfg,
		clock:         clk,
		logger:        logger,
		store:         st,
		hw:            hw,
		bcast:         broadcast.New(logger),
		circ:          circadian.NewEngine(logger),
		lastCircadian: make(map[int][2]float64),
	}

	c.settings.dtw = cfg.DTWSettings()
	c.settings.dedupeEnabled = *cfg.Settings.DMXDedupeEnabled
	c.settings.dedupeTTL = time.Duration(cfg.Settings.DMXDedupeTTLSeconds * float64(time.Second))
	c.settings.tapWindow = time.Duration(cfg.Settings.TapWindowMs) * time.Millisecond
	c.settings.dimSpeedMs = cfg.Settings.DimSpeedMs

	c.comp = compose.New(st, c.dtwSettings)
	c.out = dmxout.New(st, c.comp, hw.DMX(), clk, c.dedupeSettings, logger)

	var saver scene.Saver
	if db != nil {
		saver = db
	}
	c.scenes = scene.New(st, c.bcast, clk, saver, c.overrideTimeout, logger)

	c.switches = switches.New(st, hw, c.scenes, c.bcast, clk,
		time.Duration(cfg.Loop.HoldThresholdMs)*time.Millisecond,
		cfg.Settings.DimSpeedMs,
		c.tapWindow, c.overrideTimeout, logger)

	c.discovery = switches.NewDiscovery(hw, c.bcast, clk, c.switches.ConfiguredPins, logger)

	if db != nil {
		c.persist = persist.NewPersistence(st, db, clk, logger)
	}

	c.sched = loop.NewScheduler(clk, logger)
	c.loop = loop.New(cfg.Loop.FrequencyHz, c.sched, logger)

	c.registerPipeline()
	return c
}

func (c *Controller) dtwSettings() dtw.Settings {
	c.settings.mu.RLock()
	defer c.settings.mu.RUnlock()
	return c.settings.dtw
}

func (c *Controller) dedupeSettings() (bool, time.Duration) {
	c.settings.mu.RLock()
	defer c.settings.mu.RUnlock()
	return c.settings.dedupeEnabled, c.settings.dedupeTTL
}

func (c *Controller) tapWindow() time.Duration {
	c.settings.mu.RLock()
	defer c.settings.mu.RUnlock()
	return c.settings.tapWindow
}

func (c *Controller) overrideTimeout() time.Duration {
	c.settings.mu.RLock()
	defer c.settings.mu.RUnlock()
	return c.settings.dtw.OverrideTimeout
}

// registerPipeline wires the per-tick stages in data-flow order and
// the periodic tasks: inputs, goal mutation, interpolation, output,
// then scheduler work between ticks.
func (c *Controller) registerPipeline() {
	c.loop.Register("switch_scan", c.switches.Tick)
	c.loop.Register("advance", c.advanceTick)
	c.loop.Register("dmx_output", c.out.Tick)

	persistInterval := time.Duration(c.cfg.Persist.IntervalSeconds * float64(time.Second))
	if c.persist != nil {
		c.sched.Schedule("persistence", persistInterval, false, c.persist.Flush)
	}
	c.sched.Schedule("circadian",
		time.Duration(c.cfg.Settings.CircadianIntervalSeconds*float64(time.Second)), true, c.circadianTick)
	c.sched.Schedule("override_expiry",
		time.Duration(c.cfg.Settings.OverrideSweepIntervalSeconds*float64(time.Second)), false, c.overrideSweep)
	c.sched.Schedule("switch_discovery", time.Second, false, c.discovery.Scan)
	c.sched.Schedule("hardware_health", 30*time.Second, false, c.healthCheck)
}

// Load registers all configured entities and rehydrates saved state.
// Must run before the loop starts.
func (c *Controller) Load() error {
	for _, p := range c.cfg.BuildProfiles() {
		if err := c.circ.Load(p); err != nil {
			c.logger.Error("circadian profile rejected", "profile", p.ID, "error", err)
		}
	}

	for _, f := range c.cfg.BuildFixtures() {
		if err := c.store.RegisterFixture(f); err != nil {
			return err
		}
	}

	groups := c.cfg.BuildGroups()
	for _, g := range groups {
		if err := c.store.RegisterGroup(g); err != nil {
			return err
		}
	}
	for _, g := range c.cfg.Groups {
		for _, fid := range g.Fixtures {
			if err := c.store.AddFixtureToGroup(fid, g.ID); err != nil {
				return err
			}
		}
	}
	for _, g := range c.cfg.Groups {
		for _, child := range g.Children {
			if err := c.store.LinkGroups(g.ID, child); err != nil {
				return err
			}
		}
	}

	for _, s := range c.cfg.BuildScenes() {
		c.scenes.Register(s)
	}

	for _, sw := range c.cfg.BuildSwitches() {
		if err := c.switches.Register(sw); err != nil {
			return err
		}
	}

	if c.persist != nil {
		if err := c.persist.Rehydrate(); err != nil {
			c.logger.Error("state rehydration failed, continuing with defaults", "error", err)
		}
	}

	c.logger.Info("configuration loaded",
		"fixtures", len(c.cfg.Fixtures),
		"groups", len(c.cfg.Groups),
		"scenes", len(c.cfg.Scenes),
		"switches", len(c.cfg.Switches),
		"profiles", len(c.cfg.Profiles))
	return nil
}

// Run drives the control loop until the context is cancelled, then
// flushes state and closes hardware.
func (c *Controller) Run(ctx context.Context) error {
	err := c.loop.Run(ctx)

	if c.persist != nil {
		if ferr := c.persist.Flush(); ferr != nil {
			c.logger.Error("final state flush failed", "error", ferr)
		}
	}
	c.hw.Close()

	if err == context.Canceled {
		return nil
	}
	return err
}

// TickOnce runs a single control-loop iteration synchronously
func (c *Controller) TickOnce() {
	c.loop.RunIteration()
}

// advanceTick moves transitions forward and handles power-off override
// clearing: a fixture that has settled at zero sheds its overrides.
func (c *Controller) advanceTick() error {
	now := c.clock.Now()
	changed := c.store.Advance(now)

	changedSet := make(map[int]struct{}, len(changed))
	for _, id := range changed {
		changedSet[id] = struct{}{}
	}

	for _, id := range c.store.FixtureIDs() {
		fr, ok := c.store.FixtureState(id)
		if !ok {
			continue
		}
		if fr.CurrentBrightness == 0 && fr.GoalBrightness == 0 {
			if n := c.store.ClearTargetOverrides(model.TargetFixture, id); n > 0 {
				c.logger.Debug("overrides cleared on power-off", "fixture", id, "count", n)
			}
		}
		if _, moved := changedSet[id]; moved {
			c.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{
				"fixture_id": id,
				"brightness": fr.CurrentBrightness,
				"cct":        fr.CurrentCCT,
			})
		}
	}

	// groups settle at zero too: a hold that dims a group all the way
	// down leaves a brightness override that must not outlive power-off
	for _, gid := range c.store.GroupIDs() {
		gr, ok := c.store.GroupState(gid)
		if !ok || gr.Brightness != 0 {
			continue
		}
		if n := c.store.ClearTargetOverrides(model.TargetGroup, gid); n > 0 {
			c.logger.Debug("overrides cleared on power-off", "group", gid, "count", n)
		}
	}
	return nil
}

// circadianTick recomputes the curve for every circadian group
func (c *Controller) circadianTick() error {
	now := c.clock.Now()

	for _, gid := range c.store.GroupIDs() {
		gr, ok := c.store.GroupState(gid)
		if !ok || !gr.Group.CircadianEnabled || gr.CircadianSuspended {
			continue
		}
		profileID := gr.Group.CircadianProfileID
		if profileID == 0 {
			continue
		}

		brightness, cct, err := c.circ.Calculate(profileID, now)
		if err != nil {
			c.logger.Warn("circadian calculation failed", "group", gid, "profile", profileID, "error", err)
			continue
		}

		if err := c.store.SetGroupCircadian(gid, brightness, cct); err != nil {
			continue
		}

		prev, seen := c.lastCircadian[gid]
		if !seen || prev[0] != brightness || prev[1] != float64(cct) {
			c.lastCircadian[gid] = [2]float64{brightness, float64(cct)}
			c.bcast.Publish(broadcast.CircadianChanged, map[string]any{
				"group_id":   gid,
				"brightness": brightness,
				"cct":        cct,
			})
		}
	}
	return nil
}

// overrideSweep removes expired overrides
func (c *Controller) overrideSweep() error {
	removed := c.store.ExpireOverrides(c.clock.Now())
	for _, o := range removed {
		c.logger.Info("override expired",
			"target_type", o.Key.TargetType, "target_id", o.Key.TargetID, "property", o.Key.Property)
	}
	metrics.OverridesActive.Set(float64(c.store.OverrideCount()))
	return nil
}

// healthCheck probes devices and reports transitions
func (c *Controller) healthCheck() error {
	changed := c.hw.HealthCheck()
	for device, status := range changed {
		metrics.SetHardwareUp(device, status == hardware.StatusUp)
		c.bcast.Publish(broadcast.HardwareStatus, map[string]any{
			"device": device,
			"status": string(status),
		})
		c.logger.Warn("hardware status changed", "device", device, "status", status)
	}
	return nil
}

// Accessors for the facade adapters

// Store exposes read access to runtime state
func (c *Controller) Store() *store.Store { return c.store }

// Broadcaster exposes the event feed
func (c *Controller) Broadcaster() *broadcast.Broadcaster { return c.bcast }

// Scenes exposes the scene registry
func (c *Controller) Scenes() *scene.Engine { return c.scenes }

// Compositor exposes effective-state reads
func (c *Controller) Compositor() *compose.Compositor { return c.comp }
