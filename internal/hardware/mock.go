// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package hardware

import (
	"context"
	"fmt"
	"sync"

	"tau-daemon/internal/model"
)

// MockDMX simulates DMX universes in memory for development and tests
type MockDMX struct {
	mu        sync.Mutex
	connected bool
	universes map[int]*[512]uint8

	WriteCount   int
	ChannelCount int
	failNext     bool
}

// NewMockDMX creates a mock DMX writer
func NewMockDMX() *MockDMX {
	return &MockDMX{universes: make(map[int]*[512]uint8)}
}

func (m *MockDMX) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockDMX) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

func (m *MockDMX) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockDMX) universe(u int) *[512]uint8 {
	buf, ok := m.universes[u]
	if !ok {
		buf = &[512]uint8{}
		m.universes[u] = buf
	}
	return buf
}

func (m *MockDMX) SetChannel(universe, channel int, value uint8) error {
	if channel < 1 || channel > 512 {
		return model.ErrChannelRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.universe(universe)[channel-1] = value
	m.WriteCount++
	m.ChannelCount++
	return nil
}

func (m *MockDMX) SetChannels(universe int, values map[int]uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	buf := m.universe(universe)
	for ch, v := range values {
		if ch < 1 || ch > 512 {
			return model.ErrChannelRange
		}
		buf[ch-1] = v
		m.ChannelCount++
	}
	m.WriteCount++
	return nil
}

func (m *MockDMX) SetUniverse(universe int, data []byte) error {
	if len(data) != 512 {
		return fmt.Errorf("universe data must be 512 bytes, got %d", len(data))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	copy(m.universe(universe)[:], data)
	m.WriteCount++
	return nil
}

func (m *MockDMX) Universe(universe int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, 512)
	copy(out, m.universe(universe)[:])
	return out, nil
}

// Channel returns one channel value, for tests
func (m *MockDMX) Channel(universe, channel int) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if channel < 1 || channel > 512 {
		return 0
	}
	return m.universe(universe)[channel-1]
}

// FailNext makes the next write fail once
func (m *MockDMX) FailNext() {
	m.mu.Lock()
	m.failNext = true
	m.mu.Unlock()
}

func (m *MockDMX) takeFailure() error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("mock dmx: injected failure")
	}
	return nil
}

// MockDAQ simulates a LabJack-style DAQ. Tests drive inputs with
// SetDigitalInput / SetAnalogInput.
type MockDAQ struct {
	mu        sync.Mutex
	connected bool
	digital   map[int]bool
	analog    map[int]float64
	pwm       map[int]float64
	modes     map[int]ChannelMode

	ReadCount int
}

// NewMockDAQ creates a mock DAQ
func NewMockDAQ() *MockDAQ {
	return &MockDAQ{
		digital: make(map[int]bool),
		analog:  make(map[int]float64),
		pwm:     make(map[int]float64),
		modes:   make(map[int]ChannelMode),
	}
}

func (m *MockDAQ) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockDAQ) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

func (m *MockDAQ) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockDAQ) ReadAnalog(channel int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCount++
	return m.analog[channel], nil
}

func (m *MockDAQ) ReadAnalogMany(channels []int) (map[int]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]float64, len(channels))
	for _, ch := range channels {
		out[ch] = m.analog[ch]
		m.ReadCount++
	}
	return out, nil
}

func (m *MockDAQ) ReadDigital(channel int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCount++
	return m.digital[channel], nil
}

func (m *MockDAQ) WriteDigital(channel int, level bool) error {
	m.mu.Lock()
	m.digital[channel] = level
	m.mu.Unlock()
	return nil
}

func (m *MockDAQ) SetPWM(channel int, duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("duty cycle %f out of range [0,1]", duty)
	}
	m.mu.Lock()
	m.pwm[channel] = duty
	m.mu.Unlock()
	return nil
}

func (m *MockDAQ) ConfigureChannel(channel int, mode ChannelMode) error {
	m.mu.Lock()
	m.modes[channel] = mode
	m.mu.Unlock()
	return nil
}

// SetDigitalInput drives a simulated digital input level
func (m *MockDAQ) SetDigitalInput(channel int, level bool) {
	m.mu.Lock()
	m.digital[channel] = level
	m.mu.Unlock()
}

// SetAnalogInput drives a simulated analog input voltage
func (m *MockDAQ) SetAnalogInput(channel int, volts float64) {
	m.mu.Lock()
	m.analog[channel] = volts
	m.mu.Unlock()
}

// PWM returns the last duty cycle written to a channel, for tests
func (m *MockDAQ) PWM(channel int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pwm[channel]
}

// MockGPIO simulates platform GPIO pins
type MockGPIO struct {
	mu        sync.Mutex
	connected bool
	levels    map[int]bool
	pulls     map[int]Pull
	pwm       map[int]float64
}

// NewMockGPIO creates a mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		levels: make(map[int]bool),
		pulls:  make(map[int]Pull),
		pwm:    make(map[int]float64),
	}
}

func (m *MockGPIO) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockGPIO) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

func (m *MockGPIO) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockGPIO) ConfigurePin(bcmPin int, pull Pull) error {
	m.mu.Lock()
	m.pulls[bcmPin] = pull
	// pulled-up inputs idle high
	if _, ok := m.levels[bcmPin]; !ok {
		m.levels[bcmPin] = pull == PullUp
	}
	m.mu.Unlock()
	return nil
}

func (m *MockGPIO) ReadPin(bcmPin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[bcmPin], nil
}

func (m *MockGPIO) SetPWM(bcmPin int, duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("duty cycle %f out of range [0,1]", duty)
	}
	m.mu.Lock()
	m.pwm[bcmPin] = duty
	m.mu.Unlock()
	return nil
}

// SetLevel drives a simulated pin level
func (m *MockGPIO) SetLevel(bcmPin int, level bool) {
	m.mu.Lock()
	m.levels[bcmPin] = level
	m.mu.Unlock()
}
