// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package switches runs the physical-input state machine: debounce,
// tap / hold / double-tap classification, tap-window deferral, and the
// resulting state mutations.
package switches

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/hardware"
	"tau-daemon/internal/metrics"
	"tau-daemon/internal/model"
	"tau-daemon/internal/scene"
	"tau-daemon/internal/store"
)

type phase int

const (
	phaseReleased phase = iota
	phasePressed
	phaseHeld
)

const defaultDebounce = 50 * time.Millisecond

// switchState is the per-switch machine state
type switchState struct {
	sw model.Switch

	lastRaw       bool
	lastRawChange time.Time
	seeded        bool
	stable        bool

	phase      phase
	pressStart time.Time

	lastRelease     time.Time
	pendingTap      bool
	pendingDeadline time.Time

	holdLevel    float64
	holdDir      float64
	nextDir      float64
	lastHoldTick time.Time
}

// Handler scans all configured switches once per tick
type Handler struct {
	store  *store.Store
	hw     *hardware.Manager
	scenes *scene.Engine
	bcast  *broadcast.Broadcaster
	clock  clock.PassiveClock
	logger *slog.Logger

	mu       sync.Mutex
	switches map[int]*switchState
	order    []int

	holdThreshold time.Duration
	dimSpeedMs    int

	tapWindow       func() time.Duration
	overrideTimeout func() time.Duration

	taps, doubleTaps, holds, rejected uint64
}

// New creates a switch handler
func New(st *store.Store, hw *hardware.Manager, scenes *scene.Engine, bcast *broadcast.Broadcaster, clk clock.PassiveClock,
	holdThreshold time.Duration, dimSpeedMs int, tapWindow func() time.Duration, overrideTimeout func() time.Duration,
	logger *slog.Logger) *Handler {

	if holdThreshold <= 0 {
		holdThreshold = time.Second
	}
	if dimSpeedMs <= 0 {
		dimSpeedMs = 2000
	}
	if tapWindow == nil {
		tapWindow = func() time.Duration { return 500 * time.Millisecond }
	}
	if overrideTimeout == nil {
		overrideTimeout = func() time.Duration { return 8 * time.Hour }
	}

	return &Handler{
		store:           st,
		hw:              hw,
		scenes:          scenes,
		bcast:           bcast,
		clock:           clk,
		logger:          logger,
		switches:        make(map[int]*switchState),
		holdThreshold:   holdThreshold,
		dimSpeedMs:      dimSpeedMs,
		tapWindow:       tapWindow,
		overrideTimeout: overrideTimeout,
	}
}

// Register adds a switch and configures its input pin
func (h *Handler) Register(sw model.Switch) error {
	hasFixture := sw.TargetFixtureID > 0
	hasGroup := sw.TargetGroupID > 0
	if hasFixture == hasGroup {
		return model.ErrDualSwitchTarget
	}

	switch sw.Source {
	case model.SourceGPIO:
		if err := h.hw.GPIO().ConfigurePin(sw.Pin, hardware.PullUp); err != nil {
			h.logger.Warn("GPIO pin configuration failed", "switch", sw.ID, "pin", sw.Pin, "error", err)
		}
	case model.SourceLabJack:
		if err := h.hw.DAQ().ConfigureChannel(sw.Pin, hardware.ModeDigitalIn); err != nil {
			h.logger.Warn("DAQ channel configuration failed", "switch", sw.ID, "pin", sw.Pin, "error", err)
		}
	default:
		return fmt.Errorf("switch %d: unknown input source %q", sw.ID, sw.Source)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.switches[sw.ID]; ok {
		return fmt.Errorf("switch %d: %w", sw.ID, model.ErrAlreadyRegistered)
	}
	h.switches[sw.ID] = &switchState{sw: sw}
	h.order = append(h.order, sw.ID)
	sort.Ints(h.order)
	return nil
}

// Unregister removes a switch
func (h *Handler) Unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.switches, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// SetDimSpeedMs hot-reloads the dimming speed
func (h *Handler) SetDimSpeedMs(ms int) {
	h.mu.Lock()
	if ms > 0 {
		h.dimSpeedMs = ms
	}
	h.mu.Unlock()
}

// DimSpeedMs returns the current dimming speed
func (h *Handler) DimSpeedMs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dimSpeedMs
}

// ConfiguredPins returns the pins in use per source, for discovery
func (h *Handler) ConfiguredPins() map[model.SwitchSource]map[int]struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[model.SwitchSource]map[int]struct{}{
		model.SourceLabJack: {},
		model.SourceGPIO:    {},
	}
	for _, st := range h.switches {
		out[st.sw.Source][st.sw.Pin] = struct{}{}
	}
	return out
}

// Tick scans every switch: deferred taps whose window elapsed fire
// first, then raw levels are sampled, debounced, and classified.
func (h *Handler) Tick() error {
	now := h.clock.Now()

	h.mu.Lock()
	ids := append([]int(nil), h.order...)
	h.mu.Unlock()

	for _, id := range ids {
		h.mu.Lock()
		st, ok := h.switches[id]
		h.mu.Unlock()
		if !ok {
			continue
		}

		h.flushPendingTap(st, now)

		raw, err := h.readRaw(st.sw)
		if err != nil {
			h.logger.Debug("switch read failed", "switch", id, "error", err)
			continue
		}
		h.process(st, raw, now)
	}
	return nil
}

// readRaw samples the electrical level from the configured source
func (h *Handler) readRaw(sw model.Switch) (bool, error) {
	switch sw.Source {
	case model.SourceGPIO:
		return h.hw.GPIO().ReadPin(sw.Pin)
	default:
		return h.hw.DAQ().ReadDigital(sw.Pin)
	}
}

// process normalises, debounces, and advances the machine
func (h *Handler) process(st *switchState, raw bool, now time.Time) {
	pressed := raw
	if st.sw.Type == model.NormallyClosed {
		pressed = !pressed
	}
	if st.sw.InvertReading {
		pressed = !pressed
	}

	if !st.seeded {
		st.seeded = true
		st.lastRaw = pressed
		st.lastRawChange = now
		st.stable = pressed
		return
	}

	if pressed != st.lastRaw {
		st.lastRaw = pressed
		st.lastRawChange = now
	}

	debounce := time.Duration(st.sw.Model.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	if now.Sub(st.lastRawChange) >= debounce && pressed != st.stable {
		st.stable = pressed
		if pressed {
			h.onPress(st, now)
		} else {
			h.onRelease(st, now)
		}
	}

	if st.phase == phasePressed && now.Sub(st.pressStart) >= h.holdThreshold {
		h.beginHold(st, now)
	}
	if st.phase == phaseHeld {
		h.holdStep(st, now)
	}
}

func (h *Handler) onPress(st *switchState, now time.Time) {
	st.phase = phasePressed
	st.pressStart = now
}

func (h *Handler) onRelease(st *switchState, now time.Time) {
	wasHeld := st.phase == phaseHeld
	st.phase = phaseReleased

	if wasHeld {
		h.endHold(st, now)
		return
	}

	// Tap: released before the hold threshold
	window := h.tapWindow()
	if st.sw.DoubleTapSceneID > 0 {
		if st.pendingTap && now.Sub(st.lastRelease) <= window {
			st.pendingTap = false
			st.lastRelease = now
			h.fireDoubleTap(st)
			return
		}
		// Defer the single tap until the window closes
		st.pendingTap = true
		st.pendingDeadline = now.Add(window)
		st.lastRelease = now
		return
	}

	st.lastRelease = now
	h.fireTap(st, now)
}

// flushPendingTap fires a deferred single tap once its window expires
func (h *Handler) flushPendingTap(st *switchState, now time.Time) {
	if st.pendingTap && !now.Before(st.pendingDeadline) {
		st.pendingTap = false
		h.fireTap(st, now)
	}
}

func (h *Handler) fireTap(st *switchState, now time.Time) {
	h.mu.Lock()
	h.taps++
	h.mu.Unlock()
	metrics.SwitchEventsTotal.WithLabelValues("tap").Inc()

	if err := h.toggle(st.sw, now); err != nil {
		h.logger.Warn("tap toggle failed", "switch", st.sw.ID, "error", err)
	}
}

func (h *Handler) fireDoubleTap(st *switchState) {
	h.mu.Lock()
	h.doubleTaps++
	h.mu.Unlock()
	metrics.SwitchEventsTotal.WithLabelValues("double_tap").Inc()

	if err := h.scenes.Recall(st.sw.DoubleTapSceneID); err != nil {
		h.logger.Warn("double-tap scene recall failed",
			"switch", st.sw.ID, "scene", st.sw.DoubleTapSceneID, "error", err)
	}
}

// toggle flips the target: off when lit, otherwise restore the last
// non-zero brightness (fixtures) or the group default.
func (h *Handler) toggle(sw model.Switch, now time.Time) error {
	if sw.TargetFixtureID > 0 {
		return h.toggleFixture(sw, now)
	}
	return h.toggleGroup(sw, now)
}

func (h *Handler) toggleFixture(sw model.Switch, now time.Time) error {
	fr, ok := h.store.FixtureState(sw.TargetFixtureID)
	if !ok {
		return model.ErrUnknownFixture
	}

	if fr.GoalBrightness > 0 {
		if err := h.store.SetFixtureBrightness(sw.TargetFixtureID, 0, store.TransitionOpts{Proportional: true}); err != nil {
			return err
		}
		h.store.ClearTargetOverrides(model.TargetFixture, sw.TargetFixtureID)
	} else {
		if h.sleepBlocked(sw) {
			h.rejectIncrease(sw)
			return nil
		}
		restore := fr.LastNonZeroBrightness
		if restore <= 0 {
			restore = 1
		}
		if err := h.store.SetFixtureBrightness(sw.TargetFixtureID, restore, store.TransitionOpts{Proportional: true}); err != nil {
			return err
		}
		h.putOverride(model.TargetFixture, sw.TargetFixtureID, restore, now)
	}

	h.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": sw.TargetFixtureID, "source": "switch"})
	return nil
}

func (h *Handler) toggleGroup(sw model.Switch, now time.Time) error {
	gr, ok := h.store.GroupState(sw.TargetGroupID)
	if !ok {
		return model.ErrUnknownGroup
	}

	on := false
	for _, id := range h.store.MembersOf(sw.TargetGroupID) {
		if fr, ok := h.store.FixtureState(id); ok && fr.GoalBrightness > 0 {
			on = true
			break
		}
	}

	if on {
		if err := h.store.SetGroupBrightness(sw.TargetGroupID, 0); err != nil {
			return err
		}
		h.store.ClearTargetOverrides(model.TargetGroup, sw.TargetGroupID)
	} else {
		if h.sleepBlocked(sw) {
			h.rejectIncrease(sw)
			return nil
		}
		restore := gr.Group.DefaultMaxBrightness
		if restore <= 0 {
			restore = 1
		}
		if err := h.store.SetGroupBrightness(sw.TargetGroupID, restore); err != nil {
			return err
		}
	}

	h.bcast.Publish(broadcast.GroupStateChanged, map[string]any{"group_id": sw.TargetGroupID, "source": "switch"})
	return nil
}

// beginHold enters the dimming phase. Direction alternates per full
// hold; the first hold moves away from wherever the level sits.
func (h *Handler) beginHold(st *switchState, now time.Time) {
	st.phase = phaseHeld

	level := h.targetLevel(st.sw)
	if st.nextDir != 0 {
		st.holdDir = st.nextDir
	} else if level >= 0.5 {
		st.holdDir = -1
	} else {
		st.holdDir = 1
	}

	if st.holdDir > 0 && h.sleepBlocked(st.sw) {
		h.rejectIncrease(st.sw)
		st.holdDir = -1
	}

	st.holdLevel = level
	st.lastHoldTick = now

	h.mu.Lock()
	h.holds++
	h.mu.Unlock()
	metrics.SwitchEventsTotal.WithLabelValues("hold").Inc()
}

// holdStep applies the per-tick brightness delta while held:
// elapsed seconds divided by the full-sweep dim time.
func (h *Handler) holdStep(st *switchState, now time.Time) {
	elapsed := now.Sub(st.lastHoldTick).Seconds()
	if elapsed <= 0 {
		return
	}
	st.lastHoldTick = now

	h.mu.Lock()
	sweep := float64(h.dimSpeedMs) / 1000.0
	h.mu.Unlock()

	st.holdLevel += st.holdDir * (elapsed / sweep)
	if st.holdLevel < 0 {
		st.holdLevel = 0
	}
	if st.holdLevel > 1 {
		st.holdLevel = 1
	}

	if err := h.applyLevel(st.sw, st.holdLevel, now); err != nil {
		h.logger.Warn("hold dim failed", "switch", st.sw.ID, "error", err)
	}
}

func (h *Handler) endHold(st *switchState, now time.Time) {
	st.nextDir = -st.holdDir
	h.putOverrideForTarget(st.sw, st.holdLevel, now)
}

// targetLevel reads the brightness the hold starts from
func (h *Handler) targetLevel(sw model.Switch) float64 {
	if sw.TargetFixtureID > 0 {
		if fr, ok := h.store.FixtureState(sw.TargetFixtureID); ok {
			return fr.GoalBrightness
		}
		return 0
	}
	if gr, ok := h.store.GroupState(sw.TargetGroupID); ok {
		return gr.Brightness
	}
	return 0
}

// applyLevel drives the target instantly (dimming tracks the finger)
func (h *Handler) applyLevel(sw model.Switch, level float64, now time.Time) error {
	if sw.TargetFixtureID > 0 {
		if err := h.store.SetFixtureBrightness(sw.TargetFixtureID, level, store.Instant); err != nil {
			return err
		}
		h.putOverride(model.TargetFixture, sw.TargetFixtureID, level, now)
		h.bcast.Publish(broadcast.FixtureStateChanged, map[string]any{"fixture_id": sw.TargetFixtureID, "source": "switch"})
		return nil
	}
	if err := h.store.SetGroupBrightness(sw.TargetGroupID, level); err != nil {
		return err
	}
	h.bcast.Publish(broadcast.GroupStateChanged, map[string]any{"group_id": sw.TargetGroupID, "source": "switch"})
	return nil
}

func (h *Handler) putOverrideForTarget(sw model.Switch, level float64, now time.Time) {
	if sw.TargetFixtureID > 0 {
		h.putOverride(model.TargetFixture, sw.TargetFixtureID, level, now)
	} else {
		h.putOverride(model.TargetGroup, sw.TargetGroupID, level, now)
	}
}

func (h *Handler) putOverride(tt model.TargetType, id int, value float64, now time.Time) {
	h.store.PutOverride(model.Override{
		Key:       model.OverrideKey{TargetType: tt, TargetID: id, Property: model.PropertyBrightness},
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(h.overrideTimeout()),
		Source:    "user",
	})
}

// sleepBlocked reports whether the sleep lock rejects an increase on
// this switch's target.
func (h *Handler) sleepBlocked(sw model.Switch) bool {
	now := h.clock.Now()
	if sw.TargetGroupID > 0 {
		return h.store.SleepLocked(sw.TargetGroupID, now)
	}
	for _, gid := range h.store.GroupsOf(sw.TargetFixtureID) {
		if h.store.SleepLocked(gid, now) {
			return true
		}
	}
	return false
}

func (h *Handler) rejectIncrease(sw model.Switch) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
	h.logger.Info("brightness increase rejected by sleep lock", "switch", sw.ID)
}

// Stats returns event counters
func (h *Handler) Stats() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]any{
		"switches":       len(h.switches),
		"taps":           h.taps,
		"double_taps":    h.doubleTaps,
		"holds":          h.holds,
		"sleep_rejected": h.rejected,
		"dim_speed_ms":   h.dimSpeedMs,
	}
}
