// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package scene

import (
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
	"tau-daemon/internal/transition"
)

var t0 = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup() (*store.Store, *Engine) {
	clk := clocktesting.NewFakePassiveClock(t0)
	st := store.New(store.Timing{DefaultEasing: transition.Linear}, clk, testLogger())
	e := New(st, broadcast.New(testLogger()), clk, nil, nil, testLogger())
	return st, e
}

// seed creates three fixtures at distinct states, fixtures 1-2 in
// group 1 and fixture 3 in group 2.
func seed(st *store.Store) {
	states := []struct {
		id         int
		brightness float64
		cct        float64
	}{
		{1, 0.2, 2700},
		{2, 0.5, 3000},
		{3, 0.8, 3500},
	}
	for _, s := range states {
		st.RegisterFixture(model.Fixture{
			ID:         s.id,
			Model:      model.FixtureModel{Type: model.FixtureSimpleDimmable},
			Channel:    s.id,
			DefaultCCT: 2700,
		})
		st.SetFixtureBrightness(s.id, s.brightness, store.Instant)
		st.SetFixtureColorTemp(s.id, s.cct, store.Instant)
	}

	st.RegisterGroup(model.Group{ID: 1, DefaultMaxBrightness: 1})
	st.RegisterGroup(model.Group{ID: 2, DefaultMaxBrightness: 1})
	st.AddFixtureToGroup(1, 1)
	st.AddFixtureToGroup(2, 1)
	st.AddFixtureToGroup(3, 2)
}

func capturedFixtures(t *testing.T, e *Engine, id int) []int {
	t.Helper()
	s, ok := e.Get(id)
	if !ok {
		t.Fatalf("captured scene %d not found", id)
	}
	var ids []int
	for _, v := range s.Values {
		ids = append(ids, v.FixtureID)
	}
	sort.Ints(ids)
	return ids
}

func TestCaptureIncludesAndExcludes(t *testing.T) {
	st, e := setup()
	seed(st)

	id, err := e.Capture("group1 plus fixture3 minus fixture2", []int{3}, []int{1}, []int{2}, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := capturedFixtures(t, e, id)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("captured fixtures = %v, want [1 3]", got)
	}
}

func TestCaptureExcludedGroupWins(t *testing.T) {
	st, e := setup()
	seed(st)

	id, err := e.Capture("exclude group1", []int{3}, []int{1}, nil, []int{1})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := capturedFixtures(t, e, id)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("captured fixtures = %v, want [3]", got)
	}
}

func TestCaptureDefaultAllMinusExcludes(t *testing.T) {
	st, e := setup()
	seed(st)

	id, err := e.Capture("all minus group2", nil, nil, nil, []int{2})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := capturedFixtures(t, e, id)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("captured fixtures = %v, want [1 2]", got)
	}
}

func TestCaptureEmptySelectionFails(t *testing.T) {
	st, e := setup()
	seed(st)
	if _, err := e.Capture("nothing", nil, nil, nil, []int{1, 2}); err == nil {
		t.Error("capture with an empty selection should fail")
	}
}

func TestCaptureSnapshotsGoals(t *testing.T) {
	st, e := setup()
	seed(st)

	id, err := e.Capture("snapshot", []int{2}, nil, nil, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	s, _ := e.Get(id)
	if len(s.Values) != 1 {
		t.Fatalf("values = %d, want 1", len(s.Values))
	}
	if s.Values[0].Brightness != 0.5 || s.Values[0].CCT != 3000 {
		t.Errorf("captured value = (%f, %d), want (0.5, 3000)", s.Values[0].Brightness, s.Values[0].CCT)
	}
}

func TestRecallDrivesStoredValues(t *testing.T) {
	st, e := setup()
	seed(st)

	e.Register(model.Scene{
		ID:   7,
		Name: "Movie",
		Type: model.SceneRecall,
		Values: []model.SceneValue{
			{FixtureID: 1, Brightness: 0.15, CCT: 2200},
			{FixtureID: 2, Brightness: 0},
		},
	})

	if err := e.Recall(7); err != nil {
		t.Fatalf("recall: %v", err)
	}

	f1, _ := st.FixtureState(1)
	if f1.GoalBrightness != 0.15 || f1.GoalCCT != 2200 {
		t.Errorf("fixture 1 = (%f, %f), want (0.15, 2200)", f1.GoalBrightness, f1.GoalCCT)
	}
	f2, _ := st.FixtureState(2)
	if f2.GoalBrightness != 0 {
		t.Errorf("fixture 2 goal = %f, want 0", f2.GoalBrightness)
	}
	f3, _ := st.FixtureState(3)
	if f3.GoalBrightness != 0.8 {
		t.Errorf("fixture 3 untouched by scene, goal = %f, want 0.8", f3.GoalBrightness)
	}
}

func TestRecallIdempotent(t *testing.T) {
	st, e := setup()
	seed(st)

	e.Register(model.Scene{
		ID:     7,
		Type:   model.SceneRecall,
		Values: []model.SceneValue{{FixtureID: 1, Brightness: 0.15, CCT: 2200}},
	})

	e.Recall(7)
	first, _ := st.FixtureState(1)
	e.Recall(7)
	second, _ := st.FixtureState(1)

	if first.GoalBrightness != second.GoalBrightness || first.GoalCCT != second.GoalCCT {
		t.Error("recalling the same scene twice must produce the same terminal state")
	}
}

func TestToggleSceneTurnsOffWhenActive(t *testing.T) {
	st, e := setup()
	seed(st)

	e.Register(model.Scene{
		ID:           9,
		Name:         "Evening",
		ScopeGroupID: 1,
		Type:         model.SceneToggle,
		Values: []model.SceneValue{
			{FixtureID: 1, Brightness: 0.4, CCT: 2400},
			{FixtureID: 2, Brightness: 0.3, CCT: 2400},
		},
	})

	if err := e.Recall(9); err != nil {
		t.Fatalf("first recall: %v", err)
	}
	gr, _ := st.GroupState(1)
	if gr.LastActiveSceneID != 9 {
		t.Fatalf("last active scene = %d, want 9", gr.LastActiveSceneID)
	}

	if err := e.Recall(9); err != nil {
		t.Fatalf("second recall: %v", err)
	}
	f1, _ := st.FixtureState(1)
	f2, _ := st.FixtureState(2)
	if f1.GoalBrightness != 0 || f2.GoalBrightness != 0 {
		t.Errorf("toggle scene recalled while active should turn off, got (%f, %f)",
			f1.GoalBrightness, f2.GoalBrightness)
	}
	gr, _ = st.GroupState(1)
	if gr.LastActiveSceneID != 0 {
		t.Errorf("last active scene after toggle-off = %d, want 0", gr.LastActiveSceneID)
	}
}

func TestRecallUnknownScene(t *testing.T) {
	_, e := setup()
	if err := e.Recall(99); err != model.ErrUnknownScene {
		t.Errorf("want ErrUnknownScene, got %v", err)
	}
}
