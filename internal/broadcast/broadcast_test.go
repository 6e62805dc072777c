// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package broadcast

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	b := New(testLogger())
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(FixtureStateChanged, map[string]any{"fixture_id": 1})

	select {
	case ev := <-ch:
		if ev.Type != FixtureStateChanged {
			t.Errorf("event type = %s, want fixture_state_changed", ev.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestTypedSubscriptionFilters(t *testing.T) {
	b := New(testLogger())
	ch, cancel := b.Subscribe(SceneRecalled)
	defer cancel()

	b.Publish(FixtureStateChanged, nil)
	b.Publish(SceneRecalled, map[string]any{"scene_id": 7})

	select {
	case ev := <-ch:
		if ev.Type != SceneRecalled {
			t.Errorf("filtered subscriber received %s", ev.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for scene event")
	}

	select {
	case ev := <-ch:
		t.Errorf("unexpected second event %s", ev.Type)
	default:
	}
}

func TestSlowObserverDropsNotBlocks(t *testing.T) {
	b := New(testLogger())
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// more events than the subscriber buffer holds; nobody reads
		for i := 0; i < 1000; i++ {
			b.Publish(SystemStatus, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing to a slow observer blocked")
	}

	stats := b.Stats()
	if stats["dropped"].(uint64) == 0 {
		t.Error("overflow events should be counted as dropped")
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	b := New(testLogger())
	ch, cancel := b.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Error("cancel should close the subscriber channel")
	}

	// a second cancel is harmless
	cancel()

	b.Publish(SystemStatus, nil)
	if n := b.Stats()["subscribers"].(int); n != 0 {
		t.Errorf("subscribers after cancel = %d, want 0", n)
	}
}
