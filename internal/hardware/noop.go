// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package hardware

import "context"

// No-op drivers back degraded mode: when a device is missing at
// startup the daemon keeps computing state, inputs read idle, and
// outputs go nowhere.

// NoopDMX discards all writes
type NoopDMX struct{}

func (NoopDMX) Connect(ctx context.Context) error                 { return nil }
func (NoopDMX) Close() error                                      { return nil }
func (NoopDMX) Healthy() bool                                     { return false }
func (NoopDMX) SetChannel(universe, channel int, value uint8) error { return nil }
func (NoopDMX) SetChannels(universe int, values map[int]uint8) error { return nil }
func (NoopDMX) SetUniverse(universe int, data []byte) error       { return nil }
func (NoopDMX) Universe(universe int) ([]byte, error)             { return make([]byte, 512), nil }

// NoopDAQ reads idle levels and discards writes
type NoopDAQ struct{}

func (NoopDAQ) Connect(ctx context.Context) error { return nil }
func (NoopDAQ) Close() error                      { return nil }
func (NoopDAQ) Healthy() bool                     { return false }
func (NoopDAQ) ReadAnalog(channel int) (float64, error) { return 0, nil }
func (NoopDAQ) ReadAnalogMany(channels []int) (map[int]float64, error) {
	out := make(map[int]float64, len(channels))
	for _, ch := range channels {
		out[ch] = 0
	}
	return out, nil
}
func (NoopDAQ) ReadDigital(channel int) (bool, error)              { return false, nil }
func (NoopDAQ) WriteDigital(channel int, level bool) error         { return nil }
func (NoopDAQ) SetPWM(channel int, duty float64) error             { return nil }
func (NoopDAQ) ConfigureChannel(channel int, mode ChannelMode) error { return nil }

// NoopGPIO reads idle levels and discards writes
type NoopGPIO struct{}

func (NoopGPIO) Connect(ctx context.Context) error        { return nil }
func (NoopGPIO) Close() error                             { return nil }
func (NoopGPIO) Healthy() bool                            { return false }
func (NoopGPIO) ConfigurePin(bcmPin int, pull Pull) error { return nil }
func (NoopGPIO) ReadPin(bcmPin int) (bool, error)         { return false, nil }
func (NoopGPIO) SetPWM(bcmPin int, duty float64) error    { return nil }
