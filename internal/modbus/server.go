// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package modbus

import (
	"encoding/binary"
	"log/slog"

	"github.com/tbrandon/mbserver"

	"tau-daemon/internal/controller"
)

// Config for the Modbus TCP adapter
type Config struct {
	Port string // ":502" or ":5020"
}

// Server exposes fixture state over Modbus TCP.
//
// Register mapping (holding registers, FC03/FC06/FC16):
//
//	reg 2i   = brightness of the i-th fixture (ascending id), 0-1000
//	reg 2i+1 = CCT of the i-th fixture, Kelvin
//
// Writes route through the facade operations with proportional
// transitions.
type Server struct {
	cfg    *Config
	ctrl   *controller.Controller
	logger *slog.Logger
	mb     *mbserver.Server
}

// NewServer creates the Modbus adapter
func NewServer(cfg *Config, ctrl *controller.Controller, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, ctrl: ctrl, logger: logger}
}

// Start starts the Modbus TCP listener
func (s *Server) Start() error {
	s.mb = mbserver.NewServer()

	s.mb.RegisterFunctionHandler(3, s.handleReadHoldingRegisters)
	s.mb.RegisterFunctionHandler(6, s.handleWriteSingleRegister)
	s.mb.RegisterFunctionHandler(16, s.handleWriteMultipleRegisters)

	addr := s.cfg.Port
	if addr == "" {
		addr = ":502"
	}

	s.logger.Info("Modbus TCP server starting", "addr", addr)

	go func() {
		if err := s.mb.ListenTCP(addr); err != nil {
			s.logger.Error("Modbus TCP server error", "error", err)
		}
	}()
	return nil
}

// Stop closes the listener
func (s *Server) Stop() {
	if s.mb != nil {
		s.mb.Close()
		s.logger.Info("Modbus TCP server stopped")
	}
}

// registerCount is fixtures × 2
func (s *Server) registerCount() int {
	return len(s.ctrl.Store().FixtureIDs()) * 2
}

// readRegister resolves one register value from live state
func (s *Server) readRegister(reg int) uint16 {
	ids := s.ctrl.Store().FixtureIDs()
	idx := reg / 2
	if idx >= len(ids) {
		return 0
	}
	fr, ok := s.ctrl.Store().FixtureState(ids[idx])
	if !ok {
		return 0
	}
	if reg%2 == 0 {
		return uint16(fr.CurrentBrightness * 1000)
	}
	return uint16(fr.CurrentCCT)
}

// writeRegister routes one register write to the controller
func (s *Server) writeRegister(reg int, value uint16) {
	ids := s.ctrl.Store().FixtureIDs()
	idx := reg / 2
	if idx >= len(ids) {
		return
	}
	id := ids[idx]

	var err error
	if reg%2 == 0 {
		if value > 1000 {
			value = 1000
		}
		err = s.ctrl.SetFixtureBrightness(id, float64(value)/1000.0, controller.ControlOpts{Proportional: true})
	} else {
		err = s.ctrl.SetFixtureCCT(id, float64(value), controller.ControlOpts{Proportional: true})
	}
	if err != nil {
		s.logger.Warn("Modbus write failed", "register", reg, "fixture", id, "error", err)
	}
}

// FC03: Read Holding Registers
func (s *Server) handleReadHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])

	if int(startAddr)+int(quantity) > s.registerCount() {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	resp := make([]byte, 1+quantity*2)
	resp[0] = byte(quantity * 2)
	for i := uint16(0); i < quantity; i++ {
		binary.BigEndian.PutUint16(resp[1+i*2:], s.readRegister(int(startAddr+i)))
	}
	return resp, &mbserver.Success
}

// FC06: Write Single Register
func (s *Server) handleWriteSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if int(addr) >= s.registerCount() {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	s.writeRegister(int(addr), value)
	return data[:4], &mbserver.Success
}

// FC16: Write Multiple Registers
func (s *Server) handleWriteMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := data[4]

	if int(startAddr)+int(quantity) > s.registerCount() {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	if int(byteCount) != int(quantity)*2 || len(data) < 5+int(byteCount) {
		return []byte{}, &mbserver.IllegalDataValue
	}

	for i := uint16(0); i < quantity; i++ {
		value := binary.BigEndian.Uint16(data[5+i*2:])
		s.writeRegister(int(startAddr+i), value)
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], startAddr)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}
