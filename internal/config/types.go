// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

// Config is the root configuration structure. It carries both the
// daemon settings and the installation's entity definitions (fixture
// models, fixtures, groups, scenes, switches, circadian profiles).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Hardware HardwareConfig `yaml:"hardware"`
	Loop     LoopConfig     `yaml:"loop"`
	Persist  PersistConfig  `yaml:"persist"`
	Settings SettingsConfig `yaml:"settings"`

	Transitions TransitionConfig `yaml:"transitions"`

	MQTT   *MQTTConfig   `yaml:"mqtt,omitempty"`
	Modbus *ModbusConfig `yaml:"modbus,omitempty"`

	FixtureModels []FixtureModelDef     `yaml:"fixture_models"`
	Fixtures      []FixtureDef          `yaml:"fixtures"`
	Groups        []GroupDef            `yaml:"groups"`
	Scenes        []SceneDef            `yaml:"scenes,omitempty"`
	SwitchModels  []SwitchModelDef      `yaml:"switch_models,omitempty"`
	Switches      []SwitchDef           `yaml:"switches,omitempty"`
	Profiles      []CircadianProfileDef `yaml:"circadian_profiles,omitempty"`
}

// ServerConfig defines facade endpoints
type ServerConfig struct {
	HTTP string `yaml:"http"`
}

// HardwareConfig selects drivers. "mock" variants run without devices.
type HardwareConfig struct {
	DMXDriver    string `yaml:"dmx_driver"`    // mock | serial
	SerialDevice string `yaml:"serial_device"` // e.g. /dev/ttyUSB0
	SerialBaud   int    `yaml:"serial_baud"`

	DAQDriver string `yaml:"daq_driver"` // mock | none

	GPIODriver string `yaml:"gpio_driver"` // mock | periph | none
	GPIOPullUp bool   `yaml:"gpio_pull_up"`
}

// LoopConfig defines control-loop timing
type LoopConfig struct {
	FrequencyHz     int `yaml:"frequency_hz"`
	HoldThresholdMs int `yaml:"hold_threshold_ms"`
	DebounceMs      int `yaml:"debounce_ms"` // default per-switch debounce
}

// PersistConfig defines the durable store
type PersistConfig struct {
	Path            string  `yaml:"path"`
	IntervalSeconds float64 `yaml:"interval_seconds"`
}

// SettingsConfig carries the persisted system settings read by the core
type SettingsConfig struct {
	DimSpeedMs int `yaml:"dim_speed_ms"`

	DMXDedupeEnabled    *bool   `yaml:"dmx_dedupe_enabled"`
	DMXDedupeTTLSeconds float64 `yaml:"dmx_dedupe_ttl_seconds"`

	DTWEnabled                *bool   `yaml:"dtw_enabled"`
	DTWMinCCT                 int     `yaml:"dtw_min_cct"`
	DTWMaxCCT                 int     `yaml:"dtw_max_cct"`
	DTWMinBrightness          float64 `yaml:"dtw_min_brightness"`
	DTWCurve                  string  `yaml:"dtw_curve"`
	DTWOverrideTimeoutSeconds int     `yaml:"dtw_override_timeout_seconds"`

	TapWindowMs int `yaml:"tap_window_ms"`

	CircadianIntervalSeconds     float64 `yaml:"circadian_interval_seconds"`
	OverrideSweepIntervalSeconds float64 `yaml:"override_sweep_interval_seconds"`
}

// TransitionConfig defines full-range sweep durations for proportional
// transitions and the default easing.
type TransitionConfig struct {
	BrightnessSeconds float64 `yaml:"brightness_seconds"`
	CCTSeconds        float64 `yaml:"cct_seconds"`
	DefaultEasing     string  `yaml:"default_easing"`
}

// MQTTConfig defines the MQTT bridge; presence enables it
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// ModbusConfig defines the Modbus TCP adapter; presence enables it
type ModbusConfig struct {
	Port string `yaml:"port"`
}

// FixtureModelDef defines a fixture model in the config file
type FixtureModelDef struct {
	Name         string  `yaml:"name"`
	Manufacturer string  `yaml:"manufacturer"`
	Model        string  `yaml:"model"`
	Type         string  `yaml:"type"`
	DMXFootprint int     `yaml:"dmx_footprint"`
	CCTMin       int     `yaml:"cct_min_kelvin"`
	CCTMax       int     `yaml:"cct_max_kelvin"`
	WarmX        float64 `yaml:"warm_x"`
	WarmY        float64 `yaml:"warm_y"`
	CoolX        float64 `yaml:"cool_x"`
	CoolY        float64 `yaml:"cool_y"`
	WarmLumens   float64 `yaml:"warm_lumens"`
	CoolLumens   float64 `yaml:"cool_lumens"`
	Gamma        float64 `yaml:"gamma"`
}

// FixtureDef defines a fixture instance
type FixtureDef struct {
	ID               int    `yaml:"id"`
	Name             string `yaml:"name"`
	Model            string `yaml:"model"` // FixtureModelDef.Name
	Universe         int    `yaml:"universe"`
	Channel          int    `yaml:"channel"`
	SecondaryChannel int    `yaml:"secondary_channel"`
	DefaultCCT       int    `yaml:"default_cct"`
	DTWIgnore        bool   `yaml:"dtw_ignore"`
	DTWMinCCT        int    `yaml:"dtw_min_cct"`
	DTWMaxCCT        int    `yaml:"dtw_max_cct"`
}

// SleepLockDef defines a group's sleep window ("HH:MM" strings)
type SleepLockDef struct {
	Start         string `yaml:"start"`
	End           string `yaml:"end"`
	UnlockMinutes int    `yaml:"unlock_minutes"`
}

// GroupDef defines a group and its memberships
type GroupDef struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	IsSystem bool   `yaml:"is_system"`

	Fixtures []int `yaml:"fixtures"`
	Children []int `yaml:"children,omitempty"`

	CircadianEnabled bool `yaml:"circadian_enabled"`
	CircadianProfile int  `yaml:"circadian_profile"`

	// tenths of a percent, 0-1000 (original unit), default 1000
	DefaultMaxBrightness *int `yaml:"default_max_brightness"`
	DefaultCCT           int  `yaml:"default_cct"`

	DTWIgnore bool `yaml:"dtw_ignore"`
	DTWMinCCT int  `yaml:"dtw_min_cct"`
	DTWMaxCCT int  `yaml:"dtw_max_cct"`

	SleepLock *SleepLockDef `yaml:"sleep_lock,omitempty"`

	DisplayOrder int `yaml:"display_order"`
}

// SceneValueDef defines one fixture's target within a scene
type SceneValueDef struct {
	Fixture    int     `yaml:"fixture"`
	Brightness float64 `yaml:"brightness"`
	CCT        int     `yaml:"cct"`
}

// SceneDef defines a scene
type SceneDef struct {
	ID           int             `yaml:"id"`
	Name         string          `yaml:"name"`
	ScopeGroup   int             `yaml:"scope_group"`
	Type         string          `yaml:"type"` // recall | toggle
	Icon         string          `yaml:"icon"`
	DisplayOrder int             `yaml:"display_order"`
	Values       []SceneValueDef `yaml:"values"`
}

// SwitchModelDef defines a switch model
type SwitchModelDef struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	InputType    string `yaml:"input_type"`
	DebounceMs   int    `yaml:"debounce_ms"`
	DimmingCurve string `yaml:"dimming_curve"`
}

// SwitchDef defines a switch instance
type SwitchDef struct {
	ID            int    `yaml:"id"`
	Name          string `yaml:"name"`
	Model         string `yaml:"model"` // SwitchModelDef.Name
	Source        string `yaml:"source"`
	Pin           int    `yaml:"pin"`
	Type          string `yaml:"type"`
	InvertReading bool   `yaml:"invert_reading"`

	TargetFixture int `yaml:"target_fixture"`
	TargetGroup   int `yaml:"target_group"`

	DoubleTapScene int `yaml:"double_tap_scene"`
}

// KeyframeDef defines one circadian keyframe ("HH:MM:SS" time)
type KeyframeDef struct {
	Time       string  `yaml:"time"`
	Brightness float64 `yaml:"brightness"`
	CCT        int     `yaml:"cct"`
}

// CircadianProfileDef defines a circadian profile
type CircadianProfileDef struct {
	ID            int           `yaml:"id"`
	Name          string        `yaml:"name"`
	Interpolation string        `yaml:"interpolation"` // linear | cosine | step
	Keyframes     []KeyframeDef `yaml:"keyframes"`
}
