// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package persist is the durable runtime-state store.
//
// Schema (bbolt bucket layout):
//
//	/fixture_state   key: fixture id (decimal)  value: JSON FixtureStateRecord
//	/group_state     key: group id (decimal)    value: JSON GroupStateRecord
//	/overrides       key: type:id:property      value: JSON model.Override
//	/scenes          key: scene id (decimal)    value: JSON model.Scene (captured scenes)
//	/meta            key: "schema_version"      value: "1"
//
// Single-process, single-writer. Snapshots commit in one transaction
// so a re-run of an identical snapshot leaves the file unchanged.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"tau-daemon/internal/model"
)

const schemaVersion = "1"

var (
	bucketFixtureState = []byte("fixture_state")
	bucketGroupState   = []byte("group_state")
	bucketOverrides    = []byte("overrides")
	bucketScenes       = []byte("scenes")
	bucketMeta         = []byte("meta")
)

// FixtureStateRecord is the persisted form of a fixture's runtime state
type FixtureStateRecord struct {
	FixtureID   int       `json:"fixture_id"`
	Brightness  float64   `json:"brightness"`
	CCT         float64   `json:"cct"`
	LastNonZero float64   `json:"last_non_zero"`
	LastUpdated time.Time `json:"last_updated"`
}

// GroupStateRecord is the persisted form of a group's runtime state
type GroupStateRecord struct {
	GroupID            int       `json:"group_id"`
	Brightness         float64   `json:"brightness"`
	CircadianSuspended bool      `json:"circadian_suspended"`
	LastActiveSceneID  int       `json:"last_active_scene_id"`
	LastUpdated        time.Time `json:"last_updated"`
}

// DB wraps the bbolt file
type DB struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the state database and its buckets
func Open(path string, logger *slog.Logger) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFixtureState, bucketGroupState, bucketOverrides, bucketScenes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put([]byte("schema_version"), []byte(schemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize state db: %w", err)
	}

	logger.Info("state database opened", "path", path)
	return &DB{db: db, logger: logger}, nil
}

// Close closes the database file
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveSnapshot commits all mutable runtime state in one transaction
func (d *DB) SaveSnapshot(fixtures []FixtureStateRecord, groups []GroupStateRecord, overrides []model.Override) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		fb := tx.Bucket(bucketFixtureState)
		for _, rec := range fixtures {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := fb.Put(itob(rec.FixtureID), data); err != nil {
				return err
			}
		}

		gb := tx.Bucket(bucketGroupState)
		for _, rec := range groups {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := gb.Put(itob(rec.GroupID), data); err != nil {
				return err
			}
		}

		ob := tx.Bucket(bucketOverrides)
		// overrides are replaced wholesale: expired rows must not survive
		var stale [][]byte
		c := ob.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := ob.Delete(k); err != nil {
				return err
			}
		}
		for _, o := range overrides {
			data, err := json.Marshal(o)
			if err != nil {
				return err
			}
			if err := ob.Put(overrideKey(o.Key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadFixtureStates reads all saved fixture runtime states
func (d *DB) LoadFixtureStates() (map[int]FixtureStateRecord, error) {
	out := make(map[int]FixtureStateRecord)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFixtureState).ForEach(func(k, v []byte) error {
			var rec FixtureStateRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				d.logger.Warn("corrupt fixture state row skipped", "key", string(k), "error", err)
				return nil
			}
			out[rec.FixtureID] = rec
			return nil
		})
	})
	return out, err
}

// LoadGroupStates reads all saved group runtime states
func (d *DB) LoadGroupStates() (map[int]GroupStateRecord, error) {
	out := make(map[int]GroupStateRecord)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGroupState).ForEach(func(k, v []byte) error {
			var rec GroupStateRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				d.logger.Warn("corrupt group state row skipped", "key", string(k), "error", err)
				return nil
			}
			out[rec.GroupID] = rec
			return nil
		})
	})
	return out, err
}

// LoadOverrides reads all saved overrides
func (d *DB) LoadOverrides() ([]model.Override, error) {
	var out []model.Override
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOverrides).ForEach(func(k, v []byte) error {
			var o model.Override
			if err := json.Unmarshal(v, &o); err != nil {
				d.logger.Warn("corrupt override row skipped", "key", string(k), "error", err)
				return nil
			}
			out = append(out, o)
			return nil
		})
	})
	return out, err
}

// SaveScene persists a captured scene
func (d *DB) SaveScene(s model.Scene) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketScenes).Put(itob(s.ID), data)
	})
}

// LoadScenes reads all captured scenes
func (d *DB) LoadScenes() ([]model.Scene, error) {
	var out []model.Scene
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScenes).ForEach(func(k, v []byte) error {
			var s model.Scene
			if err := json.Unmarshal(v, &s); err != nil {
				d.logger.Warn("corrupt scene row skipped", "key", string(k), "error", err)
				return nil
			}
			out = append(out, s)
			return nil
		})
	})
	return out, err
}

func itob(v int) []byte {
	return []byte(strconv.Itoa(v))
}

func overrideKey(k model.OverrideKey) []byte {
	return []byte(string(k.TargetType) + ":" + strconv.Itoa(k.TargetID) + ":" + string(k.Property))
}
