// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package dtw implements dim-to-warm: the monotone coupling of color
// temperature to brightness that emulates incandescent behaviour, plus
// the priority chain that resolves the effective CCT for a fixture.
package dtw

import (
	"math"
	"time"

	"tau-daemon/internal/model"
)

// Curve names a brightness-to-CCT mapping shape
type Curve string

const (
	CurveLinear       Curve = "linear"
	CurveLog          Curve = "log"
	CurveSquare       Curve = "square"
	CurveIncandescent Curve = "incandescent"
)

// Settings are the system-wide dim-to-warm parameters
type Settings struct {
	Enabled         bool
	MinCCT          int
	MaxCCT          int
	MinBrightness   float64
	Curve           Curve
	OverrideTimeout time.Duration
}

// DefaultSettings mirrors the persisted configuration defaults
func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		MinCCT:          1800,
		MaxCCT:          4000,
		MinBrightness:   0.001,
		Curve:           CurveLog,
		OverrideTimeout: 8 * time.Hour,
	}
}

// Inputs carries everything the resolution chain consults. Zero values
// mean "unset" for the CCT fields.
type Inputs struct {
	Brightness float64

	OverrideCCT int // active CCT override value, 0 = none

	FixtureDTWIgnore  bool
	FixtureDefaultCCT int

	GroupDTWIgnore  bool
	GroupDefaultCCT int

	// Per-fixture and per-group range overrides for the DTW curve
	FixtureMinCCT, FixtureMaxCCT int
	GroupMinCCT, GroupMaxCCT     int
}

// Resolution is the effective CCT plus its provenance tag
type Resolution struct {
	CCT    int
	Source model.CCTSource
}

// Resolve walks the priority chain: active override, fixture opt-out,
// group opt-out, computed dim-to-warm, group default (when set),
// fixture default.
func Resolve(in Inputs, s Settings) Resolution {
	if in.OverrideCCT > 0 {
		return Resolution{CCT: in.OverrideCCT, Source: model.CCTFromOverride}
	}

	if in.FixtureDTWIgnore {
		return Resolution{CCT: fallbackCCT(in.FixtureDefaultCCT, s), Source: model.CCTFromFixtureDefault}
	}

	if in.GroupDTWIgnore {
		return Resolution{CCT: fallbackCCT(in.GroupDefaultCCT, s), Source: model.CCTFromGroupDefault}
	}

	if s.Enabled {
		min, max := activeRange(in, s)
		return Resolution{
			CCT:    FromBrightness(in.Brightness, min, max, s.MinBrightness, s.Curve),
			Source: model.CCTFromDTW,
		}
	}

	if in.GroupDefaultCCT > 0 {
		return Resolution{CCT: in.GroupDefaultCCT, Source: model.CCTFromGroupDefault}
	}
	return Resolution{CCT: fallbackCCT(in.FixtureDefaultCCT, s), Source: model.CCTFromFixtureDefault}
}

// activeRange picks the curve range: fixture override beats group
// override beats system setting.
func activeRange(in Inputs, s Settings) (int, int) {
	if in.FixtureMinCCT > 0 && in.FixtureMaxCCT > 0 {
		return in.FixtureMinCCT, in.FixtureMaxCCT
	}
	if in.GroupMinCCT > 0 && in.GroupMaxCCT > 0 {
		return in.GroupMinCCT, in.GroupMaxCCT
	}
	return s.MinCCT, s.MaxCCT
}

func fallbackCCT(cct int, s Settings) int {
	if cct > 0 {
		return cct
	}
	return s.MaxCCT
}

// FromBrightness maps brightness to a CCT on [min,max] via the curve.
// Brightness at or below the floor pins to the minimum CCT.
func FromBrightness(brightness float64, minCCT, maxCCT int, minBrightness float64, curve Curve) int {
	if brightness <= minBrightness {
		return minCCT
	}
	if brightness > 1 {
		brightness = 1
	}

	var f float64
	switch curve {
	case CurveLog:
		// log10(1..10) rescaled so the warm shift is front-loaded
		f = math.Log10(1 + 9*brightness)
	case CurveSquare:
		f = brightness * brightness
	case CurveIncandescent:
		// filament temperature rises steeply at low power
		f = math.Pow(brightness, 0.4)
	default:
		f = brightness
	}

	return int(math.Round(float64(minCCT) + f*float64(maxCCT-minCCT)))
}
