// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package persist

import (
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"tau-daemon/internal/metrics"
	"tau-daemon/internal/store"
)

// Persistence is the scheduled flush task: when the store is dirty it
// snapshots mutable state, commits it in one transaction, and marks
// the store clean. A failed commit leaves the dirty flag set so the
// next interval retries.
type Persistence struct {
	store *store.Store
	db    *DB
	clock clock.PassiveClock

	mu       sync.Mutex
	saves    uint64
	failures uint64
	lastSave time.Time

	logger *slog.Logger
}

// NewPersistence binds the flush task to a store and database
func NewPersistence(st *store.Store, db *DB, clk clock.PassiveClock, logger *slog.Logger) *Persistence {
	return &Persistence{store: st, db: db, clock: clk, logger: logger}
}

// Flush writes the current state if dirty. Safe to call repeatedly; a
// quiescent system produces no writes.
func (p *Persistence) Flush() error {
	if !p.store.Dirty() {
		return nil
	}

	start := p.clock.Now()

	var fixtures []FixtureStateRecord
	for _, id := range p.store.FixtureIDs() {
		fr, ok := p.store.FixtureState(id)
		if !ok {
			continue
		}
		fixtures = append(fixtures, FixtureStateRecord{
			FixtureID:   id,
			Brightness:  fr.GoalBrightness,
			CCT:         fr.GoalCCT,
			LastNonZero: fr.LastNonZeroBrightness,
			LastUpdated: fr.LastUpdated,
		})
	}

	var groups []GroupStateRecord
	for _, id := range p.store.GroupIDs() {
		gr, ok := p.store.GroupState(id)
		if !ok {
			continue
		}
		groups = append(groups, GroupStateRecord{
			GroupID:            id,
			Brightness:         gr.Brightness,
			CircadianSuspended: gr.CircadianSuspended,
			LastActiveSceneID:  gr.LastActiveSceneID,
			LastUpdated:        gr.LastUpdated,
		})
	}

	if err := p.db.SaveSnapshot(fixtures, groups, p.store.Overrides()); err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
		metrics.PersistenceFailuresTotal.Inc()
		p.logger.Error("state persistence failed", "error", err)
		return err
	}

	p.store.MarkClean()

	p.mu.Lock()
	p.saves++
	p.lastSave = p.clock.Now()
	p.mu.Unlock()
	metrics.PersistenceSavesTotal.Inc()

	p.logger.Debug("state persisted",
		"fixtures", len(fixtures), "groups", len(groups), "elapsed", p.clock.Now().Sub(start))
	return nil
}

// Rehydrate loads saved runtime state into a freshly populated store.
// Missing rows keep registration defaults.
func (p *Persistence) Rehydrate() error {
	now := p.clock.Now()

	fixtures, err := p.db.LoadFixtureStates()
	if err != nil {
		return err
	}
	for id, rec := range fixtures {
		p.store.RestoreFixtureState(id, rec.Brightness, rec.CCT, rec.LastNonZero, rec.LastUpdated)
	}

	groups, err := p.db.LoadGroupStates()
	if err != nil {
		return err
	}
	for id, rec := range groups {
		p.store.RestoreGroupState(id, rec.Brightness, rec.CircadianSuspended, rec.LastActiveSceneID, rec.LastUpdated)
	}

	overrides, err := p.db.LoadOverrides()
	if err != nil {
		return err
	}
	restored := 0
	for _, o := range overrides {
		if p.store.RestoreOverride(o, now) {
			restored++
		}
	}

	p.logger.Info("runtime state rehydrated",
		"fixtures", len(fixtures), "groups", len(groups), "overrides", restored)
	return nil
}

// Stats returns persistence counters
func (p *Persistence) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"saves":     p.saves,
		"failures":  p.failures,
		"last_save": p.lastSave,
	}
}
