// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing config
func (c *Config) applyDefaults() {
	if c.Server.HTTP == "" {
		c.Server.HTTP = ":8000"
	}
	if c.Hardware.DMXDriver == "" {
		c.Hardware.DMXDriver = "mock"
	}
	if c.Hardware.SerialBaud == 0 {
		c.Hardware.SerialBaud = 57600
	}
	if c.Hardware.DAQDriver == "" {
		c.Hardware.DAQDriver = "mock"
	}
	if c.Hardware.GPIODriver == "" {
		c.Hardware.GPIODriver = "mock"
	}

	if c.Loop.FrequencyHz == 0 {
		c.Loop.FrequencyHz = 30
	}
	if c.Loop.HoldThresholdMs == 0 {
		c.Loop.HoldThresholdMs = 1000
	}
	if c.Loop.DebounceMs == 0 {
		c.Loop.DebounceMs = 50
	}

	if c.Persist.Path == "" {
		c.Persist.Path = "tau-state.db"
	}
	if c.Persist.IntervalSeconds == 0 {
		c.Persist.IntervalSeconds = 5
	}

	if c.Settings.DimSpeedMs == 0 {
		c.Settings.DimSpeedMs = 2000
	}
	if c.Settings.DMXDedupeEnabled == nil {
		enabled := true
		c.Settings.DMXDedupeEnabled = &enabled
	}
	if c.Settings.DMXDedupeTTLSeconds == 0 {
		c.Settings.DMXDedupeTTLSeconds = 1.0
	}
	if c.Settings.DTWEnabled == nil {
		enabled := true
		c.Settings.DTWEnabled = &enabled
	}
	if c.Settings.DTWMinCCT == 0 {
		c.Settings.DTWMinCCT = 1800
	}
	if c.Settings.DTWMaxCCT == 0 {
		c.Settings.DTWMaxCCT = 4000
	}
	if c.Settings.DTWMinBrightness == 0 {
		c.Settings.DTWMinBrightness = 0.001
	}
	if c.Settings.DTWCurve == "" {
		c.Settings.DTWCurve = "log"
	}
	if c.Settings.DTWOverrideTimeoutSeconds == 0 {
		c.Settings.DTWOverrideTimeoutSeconds = 28800
	}
	if c.Settings.TapWindowMs == 0 {
		c.Settings.TapWindowMs = 500
	}
	if c.Settings.CircadianIntervalSeconds == 0 {
		c.Settings.CircadianIntervalSeconds = 60
	}
	if c.Settings.OverrideSweepIntervalSeconds == 0 {
		c.Settings.OverrideSweepIntervalSeconds = 30
	}

	if c.Transitions.BrightnessSeconds == 0 {
		c.Transitions.BrightnessSeconds = 0.5
	}
	if c.Transitions.CCTSeconds == 0 {
		c.Transitions.CCTSeconds = 0.5
	}
	if c.Transitions.DefaultEasing == "" {
		c.Transitions.DefaultEasing = "ease_in_out"
	}

	for i := range c.FixtureModels {
		if c.FixtureModels[i].Type == "" {
			c.FixtureModels[i].Type = "simple_dimmable"
		}
		if c.FixtureModels[i].DMXFootprint == 0 {
			c.FixtureModels[i].DMXFootprint = 1
		}
		if c.FixtureModels[i].Gamma == 0 {
			c.FixtureModels[i].Gamma = 2.2
		}
	}

	for i := range c.SwitchModels {
		if c.SwitchModels[i].DebounceMs == 0 {
			c.SwitchModels[i].DebounceMs = c.Loop.DebounceMs
		}
		if c.SwitchModels[i].DimmingCurve == "" {
			c.SwitchModels[i].DimmingCurve = "logarithmic"
		}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Settings.TapWindowMs < 200 || c.Settings.TapWindowMs > 900 {
		return fmt.Errorf("tap_window_ms %d out of range (200-900)", c.Settings.TapWindowMs)
	}

	models := make(map[string]FixtureModelDef, len(c.FixtureModels))
	for _, m := range c.FixtureModels {
		if m.Name == "" {
			return fmt.Errorf("fixture model missing name")
		}
		if _, dup := models[m.Name]; dup {
			return fmt.Errorf("duplicate fixture model %q", m.Name)
		}
		models[m.Name] = m
	}

	usedChannels := make(map[[2]int]string)
	fixtureIDs := make(map[int]struct{}, len(c.Fixtures))
	for _, f := range c.Fixtures {
		if _, ok := models[f.Model]; !ok {
			return fmt.Errorf("fixture %q references unknown model %q", f.Name, f.Model)
		}
		if _, dup := fixtureIDs[f.ID]; dup {
			return fmt.Errorf("duplicate fixture id %d", f.ID)
		}
		fixtureIDs[f.ID] = struct{}{}

		if f.Channel < 1 || f.Channel > 512 {
			return fmt.Errorf("fixture %q: channel %d out of range (1-512)", f.Name, f.Channel)
		}
		key := [2]int{f.Universe, f.Channel}
		if existing, ok := usedChannels[key]; ok {
			return fmt.Errorf("channel %d/%d used by both %q and %q", f.Universe, f.Channel, existing, f.Name)
		}
		usedChannels[key] = f.Name

		if f.SecondaryChannel != 0 {
			if f.SecondaryChannel < 1 || f.SecondaryChannel > 512 {
				return fmt.Errorf("fixture %q: secondary channel %d out of range (1-512)", f.Name, f.SecondaryChannel)
			}
			key := [2]int{f.Universe, f.SecondaryChannel}
			if existing, ok := usedChannels[key]; ok {
				return fmt.Errorf("channel %d/%d used by both %q and %q", f.Universe, f.SecondaryChannel, existing, f.Name)
			}
			usedChannels[key] = f.Name
		}
	}

	groupIDs := make(map[int]struct{}, len(c.Groups))
	for _, g := range c.Groups {
		if _, dup := groupIDs[g.ID]; dup {
			return fmt.Errorf("duplicate group id %d", g.ID)
		}
		groupIDs[g.ID] = struct{}{}

		for _, fid := range g.Fixtures {
			if _, ok := fixtureIDs[fid]; !ok {
				return fmt.Errorf("group %q references unknown fixture %d", g.Name, fid)
			}
		}
		if g.DefaultMaxBrightness != nil {
			if v := *g.DefaultMaxBrightness; v < 0 || v > 1000 {
				return fmt.Errorf("group %q: default_max_brightness %d out of range (0-1000)", g.Name, v)
			}
		}
		if g.SleepLock != nil {
			if _, err := parseHHMM(g.SleepLock.Start); err != nil {
				return fmt.Errorf("group %q sleep_lock start: %w", g.Name, err)
			}
			if _, err := parseHHMM(g.SleepLock.End); err != nil {
				return fmt.Errorf("group %q sleep_lock end: %w", g.Name, err)
			}
		}
	}

	for _, g := range c.Groups {
		for _, child := range g.Children {
			if _, ok := groupIDs[child]; !ok {
				return fmt.Errorf("group %q references unknown child group %d", g.Name, child)
			}
		}
	}

	switchModels := make(map[string]struct{}, len(c.SwitchModels))
	for _, m := range c.SwitchModels {
		switchModels[m.Name] = struct{}{}
	}
	for _, sw := range c.Switches {
		hasFixture := sw.TargetFixture > 0
		hasGroup := sw.TargetGroup > 0
		if hasFixture == hasGroup {
			return fmt.Errorf("switch %q must target exactly one of fixture or group", sw.Name)
		}
		if sw.Model != "" {
			if _, ok := switchModels[sw.Model]; !ok {
				return fmt.Errorf("switch %q references unknown model %q", sw.Name, sw.Model)
			}
		}
		switch sw.Source {
		case "labjack", "gpio":
		default:
			return fmt.Errorf("switch %q: unknown source %q", sw.Name, sw.Source)
		}
	}

	for _, p := range c.Profiles {
		if len(p.Keyframes) == 0 {
			return fmt.Errorf("circadian profile %q has no keyframes", p.Name)
		}
		for _, kf := range p.Keyframes {
			if _, err := parseHHMMSS(kf.Time); err != nil {
				return fmt.Errorf("circadian profile %q: %w", p.Name, err)
			}
		}
	}

	return nil
}

// parseHHMM converts "HH:MM" to minutes since midnight
func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// parseHHMMSS converts "HH:MM:SS" (or "HH:MM") to seconds since midnight
func parseHHMMSS(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q (want HH:MM:SS)", s)
		}
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
