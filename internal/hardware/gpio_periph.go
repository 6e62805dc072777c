// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// PeriphGPIO reads Raspberry-Pi-class GPIO pins through the periph.io
// host drivers. Pins are addressed by BCM number.
type PeriphGPIO struct {
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
	pins      map[int]gpio.PinIO
}

// NewPeriphGPIO creates an unconnected periph-backed GPIO interface
func NewPeriphGPIO(logger *slog.Logger) *PeriphGPIO {
	return &PeriphGPIO{
		logger: logger,
		pins:   make(map[int]gpio.PinIO),
	}
}

func (p *PeriphGPIO) Connect(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	p.logger.Info("GPIO host initialized")
	return nil
}

func (p *PeriphGPIO) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pin := range p.pins {
		pin.Halt()
	}
	p.pins = make(map[int]gpio.PinIO)
	p.connected = false
	return nil
}

func (p *PeriphGPIO) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *PeriphGPIO) ConfigurePin(bcmPin int, pull Pull) error {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcmPin))
	if pin == nil {
		return fmt.Errorf("GPIO%d not present on this host", bcmPin)
	}

	var bias gpio.Pull
	switch pull {
	case PullUp:
		bias = gpio.PullUp
	case PullDown:
		bias = gpio.PullDown
	default:
		bias = gpio.Float
	}

	if err := pin.In(bias, gpio.NoEdge); err != nil {
		return fmt.Errorf("configure GPIO%d: %w", bcmPin, err)
	}

	p.mu.Lock()
	p.pins[bcmPin] = pin
	p.mu.Unlock()
	return nil
}

func (p *PeriphGPIO) ReadPin(bcmPin int) (bool, error) {
	p.mu.Lock()
	pin, ok := p.pins[bcmPin]
	p.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("GPIO%d not configured", bcmPin)
	}
	return pin.Read() == gpio.High, nil
}

func (p *PeriphGPIO) SetPWM(bcmPin int, duty float64) error {
	p.mu.Lock()
	pin, ok := p.pins[bcmPin]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("GPIO%d not configured", bcmPin)
	}

	if duty < 0 || duty > 1 {
		return fmt.Errorf("duty cycle %f out of range [0,1]", duty)
	}
	d := gpio.Duty(float64(gpio.DutyMax) * duty)
	if err := pin.PWM(d, 800*physic.Hertz); err != nil {
		return fmt.Errorf("GPIO%d PWM: %w", bcmPin, err)
	}
	return nil
}
