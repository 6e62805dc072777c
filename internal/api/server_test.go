// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"tau-daemon/internal/config"
	"tau-daemon/internal/controller"
	"tau-daemon/internal/hardware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const testYAML = `
fixture_models:
  - name: dimmer
    manufacturer: Test
    model: D1
    type: simple_dimmable

fixtures:
  - id: 1
    name: One
    model: dimmer
    channel: 1
  - id: 2
    name: Two
    model: dimmer
    channel: 2

groups:
  - id: 1
    name: Main
    fixtures: [1, 2]

scenes:
  - id: 1
    name: Movie
    values:
      - { fixture: 1, brightness: 0.15, cct: 2200 }
`

func testServer(t *testing.T) (*Server, *controller.Controller) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	hw := hardware.NewManager(hardware.NewMockDMX(), hardware.NewMockDAQ(), hardware.NewMockGPIO(), testLogger())
	hw.Connect(context.Background())

	clk := clocktesting.NewFakePassiveClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	ctrl := controller.New(cfg, hw, nil, clk, testLogger())
	if err := ctrl.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	return NewServer(":0", ctrl, testLogger()), ctrl
}

func TestControlFixture(t *testing.T) {
	srv, ctrl := testServer(t)

	body := strings.NewReader(`{"brightness": 0.8, "cct": 3000}`)
	req := httptest.NewRequest("POST", "/api/fixtures/1", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	fr, _ := ctrl.Store().FixtureState(1)
	if fr.GoalBrightness != 0.8 || fr.GoalCCT != 3000 {
		t.Errorf("fixture goals = (%f, %f), want (0.8, 3000)", fr.GoalBrightness, fr.GoalCCT)
	}
}

func TestControlFixtureNotFound(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("POST", "/api/fixtures/99", strings.NewReader(`{"brightness": 1}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestControlFixtureOutOfRange(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("POST", "/api/fixtures/1", strings.NewReader(`{"brightness": 1.5}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestControlGroup(t *testing.T) {
	srv, ctrl := testServer(t)

	req := httptest.NewRequest("POST", "/api/groups/1", strings.NewReader(`{"brightness": 0.5}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	gr, _ := ctrl.Store().GroupState(1)
	if gr.Brightness != 0.5 {
		t.Errorf("group multiplier = %f, want 0.5", gr.Brightness)
	}
}

func TestRecallScene(t *testing.T) {
	srv, ctrl := testServer(t)

	req := httptest.NewRequest("POST", "/api/scenes/1/recall", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	fr, _ := ctrl.Store().FixtureState(1)
	if fr.GoalBrightness != 0.15 {
		t.Errorf("goal = %f, want 0.15", fr.GoalBrightness)
	}
}

func TestCaptureScene(t *testing.T) {
	srv, ctrl := testServer(t)
	ctrl.SetFixtureBrightness(1, 0.6, controller.ControlOpts{})

	body := strings.NewReader(`{"name": "Snapshot", "fixture_ids": [1]}`)
	req := httptest.NewRequest("POST", "/api/scenes/capture", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SceneID int `json:"scene_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	s, ok := ctrl.Scenes().Get(resp.SceneID)
	if !ok || len(s.Values) != 1 || s.Values[0].Brightness != 0.6 {
		t.Errorf("captured scene = %+v", s)
	}
}

func TestAllOff(t *testing.T) {
	srv, ctrl := testServer(t)
	ctrl.SetFixtureBrightness(1, 1, controller.ControlOpts{})

	req := httptest.NewRequest("POST", "/api/all-off", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	fr, _ := ctrl.Store().FixtureState(1)
	if fr.GoalBrightness != 0 {
		t.Errorf("goal after all-off = %f, want 0", fr.GoalBrightness)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := stats["loop"]; !ok {
		t.Error("stats missing loop section")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/all-off", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 405 {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
