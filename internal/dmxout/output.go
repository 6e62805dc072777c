// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package dmxout encodes effective fixture state to DMX channel bytes
// and writes them to the universe writer, suppressing redundant writes
// inside the dedup TTL.
package dmxout

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"tau-daemon/internal/compose"
	"tau-daemon/internal/hardware"
	"tau-daemon/internal/metrics"
	"tau-daemon/internal/model"
	"tau-daemon/internal/store"
)

// DedupeFunc supplies the live dedup settings
type DedupeFunc func() (enabled bool, ttl time.Duration)

// Output is the per-tick DMX emission stage
type Output struct {
	store *store.Store
	comp  *compose.Compositor
	dmx   hardware.DMXWriter
	clock clock.PassiveClock

	dedupe DedupeFunc

	mu     sync.Mutex
	writes uint64
	skips  uint64
	errors uint64

	logger *slog.Logger
}

// New creates the output stage
func New(st *store.Store, comp *compose.Compositor, dmx hardware.DMXWriter, clk clock.PassiveClock, dedupe DedupeFunc, logger *slog.Logger) *Output {
	if dedupe == nil {
		dedupe = func() (bool, time.Duration) { return true, time.Second }
	}
	return &Output{
		store:  st,
		comp:   comp,
		dmx:    dmx,
		clock:  clk,
		dedupe: dedupe,
		logger: logger,
	}
}

// Tick encodes and emits every registered fixture
func (o *Output) Tick() error {
	now := o.clock.Now()
	enabled, ttl := o.dedupe()

	var firstErr error
	for _, id := range o.store.FixtureIDs() {
		if err := o.emit(id, now, enabled, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *Output) emit(id int, now time.Time, dedupe bool, ttl time.Duration) error {
	fr, ok := o.store.FixtureState(id)
	if !ok {
		return nil
	}

	eff, err := o.comp.Effective(id)
	if err != nil {
		return err
	}

	tuple := Encode(fr.Fixture, eff)

	if dedupe && fr.LastTuple != nil &&
		bytes.Equal(fr.LastTuple, tuple) &&
		now.Sub(fr.LastWriteTime) < ttl {
		o.mu.Lock()
		o.skips++
		o.mu.Unlock()
		metrics.DMXDedupSkipsTotal.Inc()
		return nil
	}

	values := map[int]uint8{fr.Fixture.Channel: tuple[0]}
	if fr.Fixture.SecondaryChannel > 0 && len(tuple) > 1 {
		values[fr.Fixture.SecondaryChannel] = tuple[1]
	}

	if err := o.dmx.SetChannels(fr.Fixture.Universe, values); err != nil {
		o.mu.Lock()
		o.errors++
		o.mu.Unlock()
		return fmt.Errorf("fixture %d: %w", id, err)
	}

	o.store.RecordWrite(id, tuple, now)
	o.mu.Lock()
	o.writes++
	o.mu.Unlock()
	metrics.DMXWritesTotal.Inc()
	return nil
}

// Encode converts an effective state to the fixture's channel bytes:
// one byte for dimmable types, two for tunable white mixed on the
// Planckian locus.
func Encode(f model.Fixture, eff compose.Effective) []uint8 {
	switch f.Model.Type {
	case model.FixtureTunableWhite:
		warm, cool := mixPlanckian(f.Model, float64(eff.CCT), eff.Brightness)
		return []uint8{
			quantise(applyGamma(warm, f.Model.Gamma)),
			quantise(applyGamma(cool, f.Model.Gamma)),
		}
	default:
		return []uint8{quantise(eff.Brightness)}
	}
}

// Stats returns output counters
func (o *Output) Stats() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]any{
		"writes": o.writes,
		"skips":  o.skips,
		"errors": o.errors,
	}
}

// Writes returns the lifetime write count, for tests
func (o *Output) Writes() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writes
}
