// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package model

import "time"

// FixtureType determines how a fixture's effective state is encoded to DMX
type FixtureType string

const (
	FixtureSimpleDimmable FixtureType = "simple_dimmable"
	FixtureTunableWhite   FixtureType = "tunable_white"
	FixtureDimToWarm      FixtureType = "dim_to_warm"
	FixtureNonDimmable    FixtureType = "non_dimmable"
)

// XY is a CIE 1931 chromaticity coordinate
type XY struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// FixtureModel holds manufacturer specifications for a fixture type:
// DMX footprint, CCT limits, and the Planckian mixing parameters used
// for tunable-white fixtures.
type FixtureModel struct {
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
	Type         FixtureType `json:"type"`
	DMXFootprint int         `json:"dmx_footprint"`
	CCTMin       int         `json:"cct_min_kelvin"`
	CCTMax       int         `json:"cct_max_kelvin"`

	// Planckian mixing parameters (tunable_white only)
	WarmXY     XY      `json:"warm_xy"`
	CoolXY     XY      `json:"cool_xy"`
	WarmLumens float64 `json:"warm_lumens"`
	CoolLumens float64 `json:"cool_lumens"`
	Gamma      float64 `json:"gamma"`
}

// Fixture is a physical fixture instance with its DMX addressing
type Fixture struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Model FixtureModel `json:"model"`

	Universe         int `json:"universe"`
	Channel          int `json:"channel"`           // primary, 1-512
	SecondaryChannel int `json:"secondary_channel"` // 0 = none

	DefaultCCT int `json:"default_cct"`

	// Dim-to-warm opt-out and optional per-fixture range overrides (0 = unset)
	DTWIgnore bool `json:"dtw_ignore"`
	DTWMinCCT int  `json:"dtw_min_cct"`
	DTWMaxCCT int  `json:"dtw_max_cct"`
}

// SleepLock restricts switch-driven brightness increases during a
// nightly window. Start/End are minutes since midnight; the window may
// wrap across midnight.
type SleepLock struct {
	Enabled       bool `json:"enabled"`
	StartMinutes  int  `json:"start_minutes"`
	EndMinutes    int  `json:"end_minutes"`
	UnlockMinutes int  `json:"unlock_minutes"`
}

// Group is a logical collection of fixtures. Groups may nest through
// the hierarchy registered on the state store (max depth 4).
type Group struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsSystem bool   `json:"is_system"`

	CircadianEnabled   bool `json:"circadian_enabled"`
	CircadianProfileID int  `json:"circadian_profile_id"` // 0 = none

	// DefaultMaxBrightness is the group multiplier applied when a switch
	// turns the group on, already normalised to 0..1.
	DefaultMaxBrightness float64 `json:"default_max_brightness"`
	DefaultCCT           int     `json:"default_cct"` // 0 = unset

	DTWIgnore bool `json:"dtw_ignore"`
	DTWMinCCT int  `json:"dtw_min_cct"`
	DTWMaxCCT int  `json:"dtw_max_cct"`

	Sleep SleepLock `json:"sleep_lock"`

	DisplayOrder int `json:"display_order"`
}

// SceneType selects recall behaviour: a "recall" scene is idempotent,
// a "toggle" scene turns its scope off when recalled while active.
type SceneType string

const (
	SceneRecall SceneType = "recall"
	SceneToggle SceneType = "toggle"
)

// SceneValue is the stored target for one fixture within a scene
type SceneValue struct {
	FixtureID  int     `json:"fixture_id"`
	Brightness float64 `json:"brightness"`
	CCT        int     `json:"cct"`
}

// Scene is a named static lighting preset, optionally scoped to a group
type Scene struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	ScopeGroupID int          `json:"scope_group_id"` // 0 = unscoped
	Type         SceneType    `json:"type"`
	Icon         string       `json:"icon"`
	DisplayOrder int          `json:"display_order"`
	Values       []SceneValue `json:"values"`
}

// SwitchSource identifies which input device a switch is wired to
type SwitchSource string

const (
	SourceLabJack SwitchSource = "labjack"
	SourceGPIO    SwitchSource = "gpio"
)

// SwitchType is the electrical contact arrangement
type SwitchType string

const (
	NormallyOpen   SwitchType = "normally-open"
	NormallyClosed SwitchType = "normally-closed"
)

// SwitchModel holds manufacturer specifications for an input device
type SwitchModel struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	InputType    string `json:"input_type"` // retractive, rotary_abs, paddle_composite, switch_simple
	DebounceMs   int    `json:"debounce_ms"`
	DimmingCurve string `json:"dimming_curve"`
}

// Switch is a physical input instance. Exactly one of TargetFixtureID
// and TargetGroupID is non-zero.
type Switch struct {
	ID    int         `json:"id"`
	Name  string      `json:"name"`
	Model SwitchModel `json:"model"`

	Source SwitchSource `json:"source"`
	Pin    int          `json:"pin"`

	Type          SwitchType `json:"type"`
	InvertReading bool       `json:"invert_reading"`

	TargetFixtureID int `json:"target_fixture_id"`
	TargetGroupID   int `json:"target_group_id"`

	DoubleTapSceneID int `json:"double_tap_scene_id"` // 0 = none
}

// TargetType identifies what an override applies to
type TargetType string

const (
	TargetFixture TargetType = "fixture"
	TargetGroup   TargetType = "group"
)

// Property is the single property an override supersedes
type Property string

const (
	PropertyBrightness Property = "brightness"
	PropertyCCT        Property = "cct"
)

// OverrideKey uniquely identifies an override slot. At most one
// override exists per key.
type OverrideKey struct {
	TargetType TargetType `json:"target_type"`
	TargetID   int        `json:"target_id"`
	Property   Property   `json:"property"`
}

// Override is a time-bounded manual value that supersedes the computed
// composition for a single property of a single target.
type Override struct {
	Key       OverrideKey `json:"key"`
	Value     float64     `json:"value"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	Source    string      `json:"source"` // user, api, scene, schedule
}

// Expired reports whether the override has passed its expiry time
func (o *Override) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// CCTSource tags where an effective CCT came from, for observability
type CCTSource string

const (
	CCTFromOverride       CCTSource = "override"
	CCTFromFixtureDefault CCTSource = "fixture_default"
	CCTFromGroupDefault   CCTSource = "group_default"
	CCTFromDTW            CCTSource = "dtw_auto"
)
