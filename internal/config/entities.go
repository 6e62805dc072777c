// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

import (
	"time"

	"tau-daemon/internal/circadian"
	"tau-daemon/internal/dtw"
	"tau-daemon/internal/model"
	"tau-daemon/internal/transition"
)

// The Build* methods convert validated config definitions into domain
// entities. Validate has already run, so lookups cannot miss.

// BuildFixtures resolves fixture definitions against their models
func (c *Config) BuildFixtures() []model.Fixture {
	models := make(map[string]FixtureModelDef, len(c.FixtureModels))
	for _, m := range c.FixtureModels {
		models[m.Name] = m
	}

	out := make([]model.Fixture, 0, len(c.Fixtures))
	for _, f := range c.Fixtures {
		md := models[f.Model]
		defaultCCT := f.DefaultCCT
		if defaultCCT == 0 {
			defaultCCT = 2700
		}
		out = append(out, model.Fixture{
			ID:   f.ID,
			Name: f.Name,
			Model: model.FixtureModel{
				Manufacturer: md.Manufacturer,
				Model:        md.Model,
				Type:         model.FixtureType(md.Type),
				DMXFootprint: md.DMXFootprint,
				CCTMin:       md.CCTMin,
				CCTMax:       md.CCTMax,
				WarmXY:       model.XY{X: md.WarmX, Y: md.WarmY},
				CoolXY:       model.XY{X: md.CoolX, Y: md.CoolY},
				WarmLumens:   md.WarmLumens,
				CoolLumens:   md.CoolLumens,
				Gamma:        md.Gamma,
			},
			Universe:         f.Universe,
			Channel:          f.Channel,
			SecondaryChannel: f.SecondaryChannel,
			DefaultCCT:       defaultCCT,
			DTWIgnore:        f.DTWIgnore,
			DTWMinCCT:        f.DTWMinCCT,
			DTWMaxCCT:        f.DTWMaxCCT,
		})
	}
	return out
}

// BuildGroups converts group definitions (brightness tenths → 0..1)
func (c *Config) BuildGroups() []model.Group {
	out := make([]model.Group, 0, len(c.Groups))
	for _, g := range c.Groups {
		maxBrightness := 1.0
		if g.DefaultMaxBrightness != nil {
			maxBrightness = float64(*g.DefaultMaxBrightness) / 1000.0
		}

		var sleep model.SleepLock
		if g.SleepLock != nil {
			start, _ := parseHHMM(g.SleepLock.Start)
			end, _ := parseHHMM(g.SleepLock.End)
			sleep = model.SleepLock{
				Enabled:       true,
				StartMinutes:  start,
				EndMinutes:    end,
				UnlockMinutes: g.SleepLock.UnlockMinutes,
			}
		}

		out = append(out, model.Group{
			ID:                   g.ID,
			Name:                 g.Name,
			IsSystem:             g.IsSystem,
			CircadianEnabled:     g.CircadianEnabled,
			CircadianProfileID:   g.CircadianProfile,
			DefaultMaxBrightness: maxBrightness,
			DefaultCCT:           g.DefaultCCT,
			DTWIgnore:            g.DTWIgnore,
			DTWMinCCT:            g.DTWMinCCT,
			DTWMaxCCT:            g.DTWMaxCCT,
			Sleep:                sleep,
			DisplayOrder:         g.DisplayOrder,
		})
	}
	return out
}

// BuildScenes converts scene definitions
func (c *Config) BuildScenes() []model.Scene {
	out := make([]model.Scene, 0, len(c.Scenes))
	for _, s := range c.Scenes {
		sceneType := model.SceneType(s.Type)
		if sceneType == "" {
			sceneType = model.SceneRecall
		}
		values := make([]model.SceneValue, 0, len(s.Values))
		for _, v := range s.Values {
			values = append(values, model.SceneValue{
				FixtureID:  v.Fixture,
				Brightness: v.Brightness,
				CCT:        v.CCT,
			})
		}
		out = append(out, model.Scene{
			ID:           s.ID,
			Name:         s.Name,
			ScopeGroupID: s.ScopeGroup,
			Type:         sceneType,
			Icon:         s.Icon,
			DisplayOrder: s.DisplayOrder,
			Values:       values,
		})
	}
	return out
}

// BuildSwitches resolves switch definitions against their models
func (c *Config) BuildSwitches() []model.Switch {
	models := make(map[string]SwitchModelDef, len(c.SwitchModels))
	for _, m := range c.SwitchModels {
		models[m.Name] = m
	}

	out := make([]model.Switch, 0, len(c.Switches))
	for _, sw := range c.Switches {
		md, ok := models[sw.Model]
		if !ok {
			md = SwitchModelDef{
				InputType:    "retractive",
				DebounceMs:   c.Loop.DebounceMs,
				DimmingCurve: "logarithmic",
			}
		}
		swType := model.SwitchType(sw.Type)
		if swType == "" {
			swType = model.NormallyClosed
		}
		out = append(out, model.Switch{
			ID:   sw.ID,
			Name: sw.Name,
			Model: model.SwitchModel{
				Manufacturer: md.Manufacturer,
				Model:        md.Model,
				InputType:    md.InputType,
				DebounceMs:   md.DebounceMs,
				DimmingCurve: md.DimmingCurve,
			},
			Source:           model.SwitchSource(sw.Source),
			Pin:              sw.Pin,
			Type:             swType,
			InvertReading:    sw.InvertReading,
			TargetFixtureID:  sw.TargetFixture,
			TargetGroupID:    sw.TargetGroup,
			DoubleTapSceneID: sw.DoubleTapScene,
		})
	}
	return out
}

// BuildProfiles converts circadian profile definitions
func (c *Config) BuildProfiles() []circadian.Profile {
	out := make([]circadian.Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		kfs := make([]circadian.Keyframe, 0, len(p.Keyframes))
		for _, kf := range p.Keyframes {
			seconds, _ := parseHHMMSS(kf.Time)
			kfs = append(kfs, circadian.Keyframe{
				Seconds:    seconds,
				Brightness: kf.Brightness,
				CCT:        kf.CCT,
			})
		}
		out = append(out, circadian.Profile{
			ID:        p.ID,
			Name:      p.Name,
			Interp:    circadian.Interpolation(p.Interpolation),
			Keyframes: kfs,
		})
	}
	return out
}

// DTWSettings assembles the dim-to-warm settings block
func (c *Config) DTWSettings() dtw.Settings {
	return dtw.Settings{
		Enabled:         *c.Settings.DTWEnabled,
		MinCCT:          c.Settings.DTWMinCCT,
		MaxCCT:          c.Settings.DTWMaxCCT,
		MinBrightness:   c.Settings.DTWMinBrightness,
		Curve:           dtw.Curve(c.Settings.DTWCurve),
		OverrideTimeout: time.Duration(c.Settings.DTWOverrideTimeoutSeconds) * time.Second,
	}
}

// Timing assembles the store's transition timing block
func (c *Config) Timing() (brightness, cct time.Duration, easing transition.Easing) {
	e, err := transition.ParseEasing(c.Transitions.DefaultEasing)
	if err != nil {
		e = transition.EaseInOut
	}
	return time.Duration(c.Transitions.BrightnessSeconds * float64(time.Second)),
		time.Duration(c.Transitions.CCTSeconds * float64(time.Second)),
		e
}
