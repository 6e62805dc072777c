// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package broadcast fans state-change events out to observers. Delivery
// is best-effort and non-blocking: a slow observer drops events rather
// than stalling the control loop.
package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"tau-daemon/internal/metrics"
)

// EventType classifies observable events
type EventType string

const (
	FixtureStateChanged EventType = "fixture_state_changed"
	GroupStateChanged   EventType = "group_state_changed"
	SceneRecalled       EventType = "scene_recalled"
	SceneCaptured       EventType = "scene_captured"
	CircadianChanged    EventType = "circadian_changed"
	HardwareStatus      EventType = "hardware_status"
	SystemStatus        EventType = "system_status"
	SwitchDiscovered    EventType = "switch_discovered"
)

// Event is one queued notification
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

type subscriber struct {
	ch    chan Event
	types map[EventType]struct{} // nil = all types
}

// Broadcaster is the outbound event channel to observers
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int

	published uint64
	dropped   uint64

	logger *slog.Logger
}

// New creates an empty broadcaster
func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]*subscriber),
		logger: logger,
	}
}

// Subscribe registers an observer for the given event types (none =
// all). The returned cancel func unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(types ...EventType) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 64)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish queues an event for every matching subscriber without blocking
func (b *Broadcaster) Publish(t EventType, payload any) {
	ev := Event{Type: t, Payload: payload, Time: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.published++
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[t]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped++
			metrics.BroadcastDroppedTotal.Inc()
		}
	}
}

// Stats returns broadcaster counters
func (b *Broadcaster) Stats() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]any{
		"subscribers": len(b.subs),
		"published":   b.published,
		"dropped":     b.dropped,
	}
}
