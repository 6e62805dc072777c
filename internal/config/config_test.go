// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
server:
  http: ":8000"

fixture_models:
  - name: dimmer
    manufacturer: Test
    model: D1
    type: simple_dimmable
  - name: tw
    manufacturer: Test
    model: TW2
    type: tunable_white
    dmx_footprint: 2
    cct_min_kelvin: 1800
    cct_max_kelvin: 4000
    warm_x: 0.5268
    warm_y: 0.4133
    cool_x: 0.3805
    cool_y: 0.3768
    warm_lumens: 650
    cool_lumens: 800

fixtures:
  - id: 1
    name: Cans
    model: tw
    channel: 1
    secondary_channel: 2
  - id: 2
    name: Pendant
    model: dimmer
    channel: 3

groups:
  - id: 1
    name: Main
    fixtures: [1, 2]
    circadian_enabled: true
    circadian_profile: 1
    default_max_brightness: 800

switches:
  - id: 1
    name: Wall
    source: labjack
    pin: 4
    type: normally-open
    target_group: 1

circadian_profiles:
  - id: 1
    name: Day
    keyframes:
      - { time: "06:00:00", brightness: 0.3, cct: 2700 }
      - { time: "22:00:00", brightness: 0.2, cct: 2500 }
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Fixtures) != 2 || len(cfg.Groups) != 1 {
		t.Errorf("entities = %d fixtures %d groups", len(cfg.Fixtures), len(cfg.Groups))
	}

	// defaults applied
	if cfg.Loop.FrequencyHz != 30 {
		t.Errorf("loop frequency = %d, want default 30", cfg.Loop.FrequencyHz)
	}
	if cfg.Settings.DimSpeedMs != 2000 {
		t.Errorf("dim speed = %d, want default 2000", cfg.Settings.DimSpeedMs)
	}
	if cfg.Settings.TapWindowMs != 500 {
		t.Errorf("tap window = %d, want default 500", cfg.Settings.TapWindowMs)
	}
	if !*cfg.Settings.DMXDedupeEnabled || cfg.Settings.DMXDedupeTTLSeconds != 1.0 {
		t.Error("dedup defaults should be enabled with a 1.0 s TTL")
	}
	if cfg.Settings.DTWMinCCT != 1800 || cfg.Settings.DTWMaxCCT != 4000 {
		t.Errorf("dtw range defaults = %d-%d", cfg.Settings.DTWMinCCT, cfg.Settings.DTWMaxCCT)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestValidateDuplicateChannel(t *testing.T) {
	bad := strings.Replace(validYAML, "channel: 3", "channel: 1", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Error("duplicate channel should be rejected")
	}
}

func TestValidateUnknownModel(t *testing.T) {
	bad := strings.Replace(validYAML, "model: dimmer", "model: nonexistent", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Error("unknown fixture model should be rejected")
	}
}

func TestValidateSwitchTargetXOR(t *testing.T) {
	bad := strings.Replace(validYAML, "target_group: 1", "target_group: 1\n    target_fixture: 1", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Error("switch with both targets should be rejected")
	}

	bad = strings.Replace(validYAML, "    target_group: 1\n", "", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Error("switch with no target should be rejected")
	}
}

func TestValidateTapWindowRange(t *testing.T) {
	bad := validYAML + "\nsettings:\n  tap_window_ms: 1500\n"
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Error("tap window outside 200-900 should be rejected")
	}
}

func TestBuildFixturesResolvesModels(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	fixtures := cfg.BuildFixtures()
	if len(fixtures) != 2 {
		t.Fatalf("built %d fixtures, want 2", len(fixtures))
	}
	tw := fixtures[0]
	if string(tw.Model.Type) != "tunable_white" || tw.SecondaryChannel != 2 {
		t.Errorf("tunable fixture = %+v", tw)
	}
	if tw.Model.Gamma != 2.2 {
		t.Errorf("gamma default = %f, want 2.2", tw.Model.Gamma)
	}
	if tw.DefaultCCT != 2700 {
		t.Errorf("default cct = %d, want 2700", tw.DefaultCCT)
	}
}

func TestBuildGroupsConvertsBrightnessUnits(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	groups := cfg.BuildGroups()
	if len(groups) != 1 {
		t.Fatalf("built %d groups, want 1", len(groups))
	}
	if groups[0].DefaultMaxBrightness != 0.8 {
		t.Errorf("max brightness = %f, want 0.8 (800 tenths)", groups[0].DefaultMaxBrightness)
	}
}

func TestBuildProfilesParsesKeyframes(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	profiles := cfg.BuildProfiles()
	if len(profiles) != 1 || len(profiles[0].Keyframes) != 2 {
		t.Fatalf("profiles = %+v", profiles)
	}
	if profiles[0].Keyframes[0].Seconds != 6*3600 {
		t.Errorf("first keyframe at %d s, want 21600", profiles[0].Keyframes[0].Seconds)
	}
}
