// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package hardware abstracts the three physical interfaces the daemon
// drives: the DMX universe writer, the LabJack-style USB DAQ, and
// Raspberry-Pi GPIO. Each has a real and a mock variant; a Manager
// selects drivers at startup and degrades to no-ops when a device is
// missing so the control loop keeps running.
package hardware

import "context"

// ChannelMode configures a flexible DAQ I/O line
type ChannelMode string

const (
	ModeAnalog     ChannelMode = "analog"
	ModeDigitalIn  ChannelMode = "digital-in"
	ModeDigitalOut ChannelMode = "digital-out"
)

// Pull selects the GPIO input bias resistor
type Pull string

const (
	PullUp   Pull = "up"
	PullDown Pull = "down"
	PullNone Pull = "none"
)

// DMXWriter drives one or more DMX512 universes. Channels are
// 1-indexed (1-512), values 0-255.
type DMXWriter interface {
	Connect(ctx context.Context) error
	Close() error
	Healthy() bool

	SetChannel(universe, channel int, value uint8) error
	SetChannels(universe int, values map[int]uint8) error
	SetUniverse(universe int, data []byte) error
	Universe(universe int) ([]byte, error)
}

// DAQ is a LabJack-style USB data-acquisition interface: 16 flexible
// I/O lines readable as analog (0.0-2.4 V) or digital, plus PWM
// outputs for low-voltage LED drivers.
type DAQ interface {
	Connect(ctx context.Context) error
	Close() error
	Healthy() bool

	ReadAnalog(channel int) (float64, error)
	ReadAnalogMany(channels []int) (map[int]float64, error)
	ReadDigital(channel int) (bool, error)
	WriteDigital(channel int, level bool) error
	SetPWM(channel int, duty float64) error
	ConfigureChannel(channel int, mode ChannelMode) error
}

// GPIO reads platform pins for wall-switch input, with optional
// hardware PWM for LED output. The core consumes validated
// (bcm_pin, pull) pairs; pin-map metadata lives outside the core.
type GPIO interface {
	Connect(ctx context.Context) error
	Close() error
	Healthy() bool

	ConfigurePin(bcmPin int, pull Pull) error
	ReadPin(bcmPin int) (bool, error)
	SetPWM(bcmPin int, duty float64) error
}
