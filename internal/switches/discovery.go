// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package switches

import (
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"tau-daemon/internal/broadcast"
	"tau-daemon/internal/hardware"
	"tau-daemon/internal/model"
)

// pinActivity tracks recent changes on one unconfigured pin
type pinActivity struct {
	pin         int
	digital     bool
	lastValue   float64
	firstSeen   time.Time
	lastSeen    time.Time
	changeCount int
}

// Discovery watches unconfigured DAQ pins for repeated activity and
// announces candidate switches so the installer can configure them.
type Discovery struct {
	hw     *hardware.Manager
	bcast  *broadcast.Broadcaster
	clock  clock.PassiveClock
	logger *slog.Logger

	// configured pins are refreshed from the handler before each scan
	configured func() map[model.SwitchSource]map[int]struct{}

	changeThreshold    int
	timeWindow         time.Duration
	minChangeMagnitude float64
	cooldown           time.Duration

	mu               sync.Mutex
	activity         map[int]*pinActivity // key: pin for digital, -(pin+1) for analog
	recentlyDetected map[int]time.Time
	detected         uint64
	lastScan         time.Time
}

// NewDiscovery creates the auto-discovery service
func NewDiscovery(hw *hardware.Manager, bcast *broadcast.Broadcaster, clk clock.PassiveClock,
	configured func() map[model.SwitchSource]map[int]struct{}, logger *slog.Logger) *Discovery {
	return &Discovery{
		hw:                 hw,
		bcast:              bcast,
		clock:              clk,
		logger:             logger,
		configured:         configured,
		changeThreshold:    3,
		timeWindow:         10 * time.Second,
		minChangeMagnitude: 0.1,
		cooldown:           30 * time.Second,
		activity:           make(map[int]*pinActivity),
		recentlyDetected:   make(map[int]time.Time),
	}
}

// Scan samples all unconfigured pins once; runs as a scheduled task
func (d *Discovery) Scan() error {
	if !d.hw.DAQ().Healthy() {
		return nil
	}

	now := d.clock.Now()
	configured := d.configured()[model.SourceLabJack]

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastScan = now

	for pin := 0; pin < 16; pin++ {
		if _, ok := configured[pin]; ok {
			continue
		}

		if level, err := d.hw.DAQ().ReadDigital(pin); err == nil {
			value := 0.0
			if level {
				value = 1.0
			}
			d.checkPin(pin, value, true, now)
		}

		if volts, err := d.hw.DAQ().ReadAnalog(pin); err == nil {
			d.checkPin(pin, volts, false, now)
		}
	}

	d.cleanup(now)
	return nil
}

func (d *Discovery) checkPin(pin int, value float64, digital bool, now time.Time) {
	key := pin
	if !digital {
		key = -(pin + 1)
	}

	if at, ok := d.recentlyDetected[key]; ok && now.Sub(at) < d.cooldown {
		return
	}

	act, ok := d.activity[key]
	if !ok {
		d.activity[key] = &pinActivity{
			pin:       pin,
			digital:   digital,
			lastValue: value,
			firstSeen: now,
			lastSeen:  now,
		}
		return
	}

	threshold := d.minChangeMagnitude
	if digital {
		threshold = 0.5
	}
	if diff := value - act.lastValue; diff > threshold || diff < -threshold {
		act.changeCount++
		act.lastValue = value
		act.lastSeen = now

		if act.changeCount >= d.changeThreshold && now.Sub(act.firstSeen) <= d.timeWindow {
			d.detected++
			d.recentlyDetected[key] = now
			d.logger.Info("unconfigured switch activity detected",
				"pin", pin, "digital", digital, "changes", act.changeCount)
			d.bcast.Publish(broadcast.SwitchDiscovered, map[string]any{
				"pin":          pin,
				"is_digital":   digital,
				"change_count": act.changeCount,
				"value":        value,
			})
		}
	}
}

// ClearDetection acknowledges a detection so the pin can re-announce
func (d *Discovery) ClearDetection(pin int, digital bool) {
	key := pin
	if !digital {
		key = -(pin + 1)
	}
	d.mu.Lock()
	delete(d.recentlyDetected, key)
	delete(d.activity, key)
	d.mu.Unlock()
}

func (d *Discovery) cleanup(now time.Time) {
	for key, act := range d.activity {
		if now.Sub(act.lastSeen) > d.timeWindow {
			delete(d.activity, key)
		}
	}
}

// Stats returns discovery counters
func (d *Discovery) Stats() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"switches_detected": d.detected,
		"pins_monitored":    len(d.activity),
	}
}
