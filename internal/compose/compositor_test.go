// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package compose

import (
	"log/slog"
	"os"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"tau-daemon/internal/dtw"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
	"tau-daemon/internal/transition"
)

var t0 = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup() (*store.Store, *Compositor, *clocktesting.FakePassiveClock) {
	clk := clocktesting.NewFakePassiveClock(t0)
	st := store.New(store.Timing{
		BrightnessFullRange: time.Second,
		CCTFullRange:        time.Second,
		DefaultEasing:       transition.Linear,
	}, clk, testLogger())

	settings := dtw.DefaultSettings()
	comp := New(st, func() dtw.Settings { return settings })
	return st, comp, clk
}

func addFixture(st *store.Store, id int) {
	st.RegisterFixture(model.Fixture{
		ID:         id,
		Model:      model.FixtureModel{Type: model.FixtureSimpleDimmable, CCTMin: 1800, CCTMax: 4000},
		Channel:    id,
		DefaultCCT: 2700,
	})
}

func TestEffectiveBrightnessProduct(t *testing.T) {
	st, comp, _ := setup()
	addFixture(st, 1)
	st.RegisterGroup(model.Group{ID: 1, DefaultMaxBrightness: 1, CircadianEnabled: true})
	st.AddFixtureToGroup(1, 1)

	st.SetFixtureBrightness(1, 1, store.Instant)
	st.SetGroupBrightness(1, 0.5)
	st.SetFixtureBrightness(1, 0.8, store.Instant)
	st.SetGroupCircadian(1, 0.5, 3000)

	eff, err := comp.Effective(1)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	// 0.8 × 0.5 × 0.5
	if eff.Brightness < 0.199 || eff.Brightness > 0.201 {
		t.Errorf("effective brightness = %f, want 0.2", eff.Brightness)
	}
}

func TestAbsentLayersAreUnity(t *testing.T) {
	st, comp, _ := setup()
	addFixture(st, 1)
	st.SetFixtureBrightness(1, 0.6, store.Instant)

	eff, err := comp.Effective(1)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.Brightness != 0.6 {
		t.Errorf("ungrouped fixture brightness = %f, want 0.6", eff.Brightness)
	}
}

func TestBrightnessOverrideBypassesLayers(t *testing.T) {
	st, comp, clk := setup()
	addFixture(st, 1)
	st.RegisterGroup(model.Group{ID: 1, DefaultMaxBrightness: 1})
	st.AddFixtureToGroup(1, 1)

	st.SetGroupBrightness(1, 0.5)
	st.SetFixtureBrightness(1, 0.9, store.Instant)
	st.PutOverride(model.Override{
		Key:       model.OverrideKey{TargetType: model.TargetFixture, TargetID: 1, Property: model.PropertyBrightness},
		Value:     0.9,
		CreatedAt: clk.Now(),
		ExpiresAt: clk.Now().Add(time.Hour),
		Source:    "user",
	})

	eff, _ := comp.Effective(1)
	if eff.Brightness != 0.9 {
		t.Errorf("overridden brightness = %f, want 0.9 (group multiplier bypassed)", eff.Brightness)
	}
}

func TestCCTOverrideSource(t *testing.T) {
	st, comp, clk := setup()
	addFixture(st, 1)
	st.SetFixtureBrightness(1, 0.5, store.Instant)
	st.SetFixtureColorTemp(1, 3500, store.Instant)
	st.PutOverride(model.Override{
		Key:       model.OverrideKey{TargetType: model.TargetFixture, TargetID: 1, Property: model.PropertyCCT},
		Value:     3500,
		CreatedAt: clk.Now(),
		ExpiresAt: clk.Now().Add(time.Hour),
		Source:    "user",
	})

	eff, _ := comp.Effective(1)
	if eff.CCT != 3500 || eff.CCTSource != model.CCTFromOverride {
		t.Errorf("got (%d, %s), want (3500, override)", eff.CCT, eff.CCTSource)
	}
}

func TestDTWComputedCCT(t *testing.T) {
	st, comp, _ := setup()
	addFixture(st, 1)
	st.SetFixtureBrightness(1, 1, store.Instant)

	eff, _ := comp.Effective(1)
	if eff.CCTSource != model.CCTFromDTW {
		t.Errorf("source = %s, want dtw_auto", eff.CCTSource)
	}
	if eff.CCT != 4000 {
		t.Errorf("cct at full brightness = %d, want 4000", eff.CCT)
	}
}

func TestFixtureDTWIgnore(t *testing.T) {
	st, comp, _ := setup()
	st.RegisterFixture(model.Fixture{
		ID:         1,
		Model:      model.FixtureModel{Type: model.FixtureSimpleDimmable},
		Channel:    1,
		DefaultCCT: 3000,
		DTWIgnore:  true,
	})
	st.SetFixtureBrightness(1, 0.5, store.Instant)

	eff, _ := comp.Effective(1)
	if eff.CCT != 3000 || eff.CCTSource != model.CCTFromFixtureDefault {
		t.Errorf("got (%d, %s), want (3000, fixture_default)", eff.CCT, eff.CCTSource)
	}
}

func TestUnknownFixture(t *testing.T) {
	_, comp, _ := setup()
	if _, err := comp.Effective(42); err != model.ErrUnknownFixture {
		t.Errorf("want ErrUnknownFixture, got %v", err)
	}
}
