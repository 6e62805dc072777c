// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoopIterationSeconds observes control-loop iteration wall time
	LoopIterationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tau_loop_iteration_seconds",
			Help:    "Control loop iteration wall time",
			Buckets: []float64{0.001, 0.005, 0.010, 0.020, 0.033, 0.050, 0.100},
		},
	)

	// DMXWritesTotal counts actual DMX writes
	DMXWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tau_dmx_writes_total",
			Help: "Total DMX writes issued",
		},
	)

	// DMXDedupSkipsTotal counts writes suppressed by deduplication
	DMXDedupSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tau_dmx_dedup_skips_total",
			Help: "DMX writes suppressed as duplicates inside the TTL",
		},
	)

	// SwitchEventsTotal counts classified switch events by kind
	SwitchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tau_switch_events_total",
			Help: "Switch events by kind",
		},
		[]string{"kind"},
	)

	// OverridesActive is the number of live overrides
	OverridesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tau_overrides_active",
			Help: "Active overrides in the state store",
		},
	)

	// PersistenceSavesTotal counts successful state flushes
	PersistenceSavesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tau_persistence_saves_total",
			Help: "Successful state persistence commits",
		},
	)

	// PersistenceFailuresTotal counts failed state flushes
	PersistenceFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tau_persistence_failures_total",
			Help: "Failed state persistence commits",
		},
	)

	// HardwareUp indicates device health by device name
	HardwareUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tau_hardware_up",
			Help: "Hardware device up (1) or down (0)",
		},
		[]string{"device"},
	)

	// BroadcastDroppedTotal counts events dropped by slow observers
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tau_broadcast_dropped_total",
			Help: "Broadcast events dropped due to full observer queues",
		},
	)

	// ErrorsTotal counts errors by subsystem
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tau_errors_total",
			Help: "Errors by subsystem",
		},
		[]string{"subsystem"},
	)
)

// SetHardwareUp updates a device health gauge
func SetHardwareUp(device string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	HardwareUp.WithLabelValues(device).Set(v)
}
