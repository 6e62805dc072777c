// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package dtw

import (
	"testing"

	"tau-daemon/internal/model"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if !s.Enabled {
		t.Error("enabled should default true")
	}
	if s.MinCCT != 1800 || s.MaxCCT != 4000 {
		t.Errorf("default range = %d-%d, want 1800-4000", s.MinCCT, s.MaxCCT)
	}
	if s.MinBrightness != 0.001 {
		t.Errorf("min brightness = %f, want 0.001", s.MinBrightness)
	}
	if s.Curve != CurveLog {
		t.Errorf("curve = %s, want log", s.Curve)
	}
	if s.OverrideTimeout.Seconds() != 28800 {
		t.Errorf("override timeout = %v, want 8h", s.OverrideTimeout)
	}
}

func TestOverrideTakesPriority(t *testing.T) {
	res := Resolve(Inputs{Brightness: 0.5, OverrideCCT: 3500}, DefaultSettings())
	if res.CCT != 3500 || res.Source != model.CCTFromOverride {
		t.Errorf("got (%d, %s), want (3500, override)", res.CCT, res.Source)
	}
}

func TestFixtureIgnoreUsesFixtureDefault(t *testing.T) {
	res := Resolve(Inputs{
		Brightness:        0.5,
		FixtureDTWIgnore:  true,
		FixtureDefaultCCT: 3000,
	}, DefaultSettings())
	if res.CCT != 3000 || res.Source != model.CCTFromFixtureDefault {
		t.Errorf("got (%d, %s), want (3000, fixture_default)", res.CCT, res.Source)
	}
}

func TestGroupIgnoreUsesGroupDefault(t *testing.T) {
	res := Resolve(Inputs{
		Brightness:      0.5,
		GroupDTWIgnore:  true,
		GroupDefaultCCT: 3200,
	}, DefaultSettings())
	if res.CCT != 3200 || res.Source != model.CCTFromGroupDefault {
		t.Errorf("got (%d, %s), want (3200, group_default)", res.CCT, res.Source)
	}
}

func TestLinearCurveMidpoint(t *testing.T) {
	s := Settings{Enabled: true, MinCCT: 1800, MaxCCT: 4000, MinBrightness: 0.001, Curve: CurveLinear}
	res := Resolve(Inputs{Brightness: 0.5}, s)
	if res.CCT != 2900 || res.Source != model.CCTFromDTW {
		t.Errorf("got (%d, %s), want (2900, dtw_auto)", res.CCT, res.Source)
	}
}

func TestDisabledUsesFixtureDefault(t *testing.T) {
	s := DefaultSettings()
	s.Enabled = false
	res := Resolve(Inputs{Brightness: 0.5, FixtureDefaultCCT: 3000}, s)
	if res.CCT != 3000 || res.Source != model.CCTFromFixtureDefault {
		t.Errorf("got (%d, %s), want (3000, fixture_default)", res.CCT, res.Source)
	}
}

func TestFixtureRangeOverride(t *testing.T) {
	s := Settings{Enabled: true, MinCCT: 1800, MaxCCT: 4000, MinBrightness: 0.001, Curve: CurveLinear}
	res := Resolve(Inputs{
		Brightness:    0.5,
		FixtureMinCCT: 2000,
		FixtureMaxCCT: 3500,
	}, s)
	if res.CCT != 2750 {
		t.Errorf("cct = %d, want 2750 (fixture range midpoint)", res.CCT)
	}
}

func TestGroupRangeFallback(t *testing.T) {
	s := Settings{Enabled: true, MinCCT: 1800, MaxCCT: 4000, MinBrightness: 0.001, Curve: CurveLinear}
	res := Resolve(Inputs{
		Brightness:  0.5,
		GroupMinCCT: 2200,
		GroupMaxCCT: 3800,
	}, s)
	if res.CCT != 3000 {
		t.Errorf("cct = %d, want 3000 (group range midpoint)", res.CCT)
	}
}

func TestFixtureRangeBeatsGroupRange(t *testing.T) {
	s := Settings{Enabled: true, MinCCT: 1800, MaxCCT: 4000, MinBrightness: 0.001, Curve: CurveLinear}
	res := Resolve(Inputs{
		Brightness:    0.5,
		FixtureMinCCT: 2000,
		FixtureMaxCCT: 3500,
		GroupMinCCT:   2500,
		GroupMaxCCT:   4500,
	}, s)
	if res.CCT != 2750 {
		t.Errorf("cct = %d, want 2750 (fixture range wins)", res.CCT)
	}
}

func TestZeroBrightnessPinsMinCCT(t *testing.T) {
	s := Settings{Enabled: true, MinCCT: 1800, MaxCCT: 4000, MinBrightness: 0.001, Curve: CurveLog}
	res := Resolve(Inputs{Brightness: 0}, s)
	if res.CCT != 1800 {
		t.Errorf("cct at zero brightness = %d, want 1800", res.CCT)
	}
}

func TestCurvesMonotone(t *testing.T) {
	for _, curve := range []Curve{CurveLinear, CurveLog, CurveSquare, CurveIncandescent} {
		prev := FromBrightness(0, 1800, 4000, 0.001, curve)
		for i := 1; i <= 100; i++ {
			cct := FromBrightness(float64(i)/100, 1800, 4000, 0.001, curve)
			if cct < prev {
				t.Errorf("%s: not monotone at %d%% (%d < %d)", curve, i, cct, prev)
			}
			prev = cct
		}
		if full := FromBrightness(1, 1800, 4000, 0.001, curve); full != 4000 {
			t.Errorf("%s: full brightness = %d, want 4000", curve, full)
		}
	}
}
