// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package compose combines fixture direct state, group defaults, the
// circadian curve, overrides, and dim-to-warm into one effective
// (brightness, CCT) per fixture — the value the DMX encoder emits.
package compose

import (
	"math"

	"tau-daemon/internal/dtw"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
)

// SettingsFunc supplies the live dim-to-warm settings
type SettingsFunc func() dtw.Settings

// Effective is the composed output state for one fixture
type Effective struct {
	FixtureID  int
	Brightness float64
	CCT        int
	CCTSource  model.CCTSource
}

// Compositor reads the store and produces effective states
type Compositor struct {
	store    *store.Store
	settings SettingsFunc
}

// New creates a compositor bound to a store
func New(st *store.Store, settings SettingsFunc) *Compositor {
	if settings == nil {
		settings = func() dtw.Settings { return dtw.DefaultSettings() }
	}
	return &Compositor{store: st, settings: settings}
}

// Effective composes the output state for a fixture.
//
// Brightness is the product of the fixture's interpolated value, the
// multipliers of its containing groups, and the circadian brightness of
// the first circadian-enabled group — clamped to [0,1]. An active
// brightness override on the fixture bypasses the group and circadian
// layers: the fixture's own value is emitted directly.
func (c *Compositor) Effective(id int) (Effective, error) {
	fr, ok := c.store.FixtureState(id)
	if !ok {
		return Effective{}, model.ErrUnknownFixture
	}

	groups := c.store.GroupsOf(id)

	brightness := c.effectiveBrightness(&fr, groups)
	cct, source := c.effectiveCCT(&fr, groups, brightness)

	return Effective{
		FixtureID:  id,
		Brightness: brightness,
		CCT:        cct,
		CCTSource:  source,
	}, nil
}

func (c *Compositor) effectiveBrightness(fr *store.FixtureRuntime, groups []int) float64 {
	key := model.OverrideKey{TargetType: model.TargetFixture, TargetID: fr.Fixture.ID, Property: model.PropertyBrightness}
	if _, active := c.store.Override(key); active {
		return clamp01(fr.CurrentBrightness)
	}

	eff := fr.CurrentBrightness

	for _, gid := range groups {
		gr, ok := c.store.GroupState(gid)
		if !ok {
			continue
		}
		multiplier := gr.Brightness
		gkey := model.OverrideKey{TargetType: model.TargetGroup, TargetID: gid, Property: model.PropertyBrightness}
		if o, active := c.store.Override(gkey); active {
			multiplier = o.Value
		}
		eff *= multiplier
	}

	if _, cb, _, ok := c.circadianFor(groups); ok {
		eff *= cb
	}

	return clamp01(eff)
}

// circadianFor returns the circadian pair of the first
// circadian-enabled, non-suspended group containing the fixture,
// scanning ascending group ids.
func (c *Compositor) circadianFor(groups []int) (int, float64, int, bool) {
	for _, gid := range groups {
		gr, ok := c.store.GroupState(gid)
		if !ok {
			continue
		}
		if gr.Group.CircadianEnabled && gr.CircadianActive && !gr.CircadianSuspended {
			return gid, gr.CircadianBrightness, gr.CircadianCCT, true
		}
	}
	return 0, 0, 0, false
}

func (c *Compositor) effectiveCCT(fr *store.FixtureRuntime, groups []int, brightness float64) (int, model.CCTSource) {
	settings := c.settings()

	overrideCCT := 0
	fkey := model.OverrideKey{TargetType: model.TargetFixture, TargetID: fr.Fixture.ID, Property: model.PropertyCCT}
	if _, active := c.store.Override(fkey); active {
		// The fixture's interpolated CCT tracks the override target, so
		// transitions still animate while the override pins the layer.
		overrideCCT = int(math.Round(fr.CurrentCCT))
	} else {
		for _, gid := range groups {
			gkey := model.OverrideKey{TargetType: model.TargetGroup, TargetID: gid, Property: model.PropertyCCT}
			if _, active := c.store.Override(gkey); active {
				overrideCCT = int(math.Round(fr.CurrentCCT))
				break
			}
		}
	}

	in := dtw.Inputs{
		Brightness:        brightness,
		OverrideCCT:       overrideCCT,
		FixtureDTWIgnore:  fr.Fixture.DTWIgnore,
		FixtureDefaultCCT: fr.Fixture.DefaultCCT,
		FixtureMinCCT:     fr.Fixture.DTWMinCCT,
		FixtureMaxCCT:     fr.Fixture.DTWMaxCCT,
	}

	if len(groups) > 0 {
		if gr, ok := c.store.GroupState(groups[0]); ok {
			in.GroupDTWIgnore = gr.Group.DTWIgnore
			in.GroupDefaultCCT = gr.Group.DefaultCCT
			in.GroupMinCCT = gr.Group.DTWMinCCT
			in.GroupMaxCCT = gr.Group.DTWMaxCCT
		}
	}

	// An active circadian curve supplies the group-default CCT layer
	if _, _, ccct, ok := c.circadianFor(groups); ok {
		in.GroupDefaultCCT = ccct
	}

	res := dtw.Resolve(in, settings)
	return res.CCT, res.Source
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
