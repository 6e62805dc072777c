// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"tau-daemon/internal/model"
)

// ENTTEC DMX USB Pro framing
const (
	enttecStartByte   = 0x7E
	enttecEndByte     = 0xE7
	enttecLabelOutput = 6 // Output Only Send DMX Packet
)

// SerialDMXConfig configures the serial universe writer
type SerialDMXConfig struct {
	Device  string
	Baud    int
	Timeout time.Duration
}

// SerialDMX drives a single DMX universe through an ENTTEC-style USB
// widget on a serial port. The widget carries one universe; writes for
// other universes are rejected.
type SerialDMX struct {
	cfg    SerialDMXConfig
	logger *slog.Logger

	mu        sync.Mutex
	port      serial.Port
	connected bool
	frame     [513]uint8 // start code + 512 channels
	writes    uint64
	errors    uint64
}

// NewSerialDMX creates a serial DMX writer (not yet connected)
func NewSerialDMX(cfg SerialDMXConfig, logger *slog.Logger) *SerialDMX {
	if cfg.Baud == 0 {
		cfg.Baud = 57600
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	return &SerialDMX{cfg: cfg, logger: logger}
}

func (s *SerialDMX) Connect(ctx context.Context) error {
	port, err := serial.Open(&serial.Config{
		Address:  s.cfg.Device,
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("open serial device %s: %w", s.cfg.Device, err)
	}

	s.mu.Lock()
	s.port = port
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("serial DMX connected", "device", s.cfg.Device, "baud", s.cfg.Baud)
	return nil
}

func (s *SerialDMX) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *SerialDMX) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SerialDMX) SetChannel(universe, channel int, value uint8) error {
	if channel < 1 || channel > 512 {
		return model.ErrChannelRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame[channel] = value
	return s.sendLocked()
}

func (s *SerialDMX) SetChannels(universe int, values map[int]uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, v := range values {
		if ch < 1 || ch > 512 {
			return model.ErrChannelRange
		}
		s.frame[ch] = v
	}
	return s.sendLocked()
}

func (s *SerialDMX) SetUniverse(universe int, data []byte) error {
	if len(data) != 512 {
		return fmt.Errorf("universe data must be 512 bytes, got %d", len(data))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.frame[1:], data)
	return s.sendLocked()
}

func (s *SerialDMX) Universe(universe int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 512)
	copy(out, s.frame[1:])
	return out, nil
}

// sendLocked emits the full universe as one widget packet
func (s *SerialDMX) sendLocked() error {
	if !s.connected || s.port == nil {
		return fmt.Errorf("serial DMX not connected")
	}

	n := len(s.frame)
	packet := make([]byte, 0, n+5)
	packet = append(packet, enttecStartByte, enttecLabelOutput, uint8(n&0xFF), uint8(n>>8))
	packet = append(packet, s.frame[:]...)
	packet = append(packet, enttecEndByte)

	if _, err := s.port.Write(packet); err != nil {
		s.errors++
		s.connected = false
		return fmt.Errorf("serial DMX write: %w", err)
	}
	s.writes++
	return nil
}
