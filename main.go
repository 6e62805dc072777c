// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"tau-daemon/internal/api"
	"tau-daemon/internal/config"
	"tau-daemon/internal/controller"
	"tau-daemon/internal/hardware"
	"tau-daemon/internal/modbus"
	"tau-daemon/internal/mqttbridge"
	"tau-daemon/internal/persist"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		logLevel   = flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
		dryRun     = flag.Bool("dry-run", false, "Validate config and exit")
	)
	flag.Parse()

	level := parseLogLevel(*logLevel)
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("tau daemon starting", "version", "1.0.0")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"fixtures", len(cfg.Fixtures),
		"groups", len(cfg.Groups),
		"switches", len(cfg.Switches),
		"loop_hz", cfg.Loop.FrequencyHz,
		"http", cfg.Server.HTTP)

	if *dryRun {
		logger.Info("dry run mode - configuration is valid")
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	clk := clock.RealClock{}

	// Hardware: connect failures degrade to no-ops, not fatal exits
	hw := hardware.NewManager(buildDMX(cfg, logger), buildDAQ(cfg), buildGPIO(cfg, logger), logger)
	hw.Connect(ctx)

	var db *persist.DB
	db, err = persist.Open(cfg.Persist.Path, logger)
	if err != nil {
		logger.Error("state database unavailable, running without persistence", "error", err)
		db = nil
	}

	ctrl := controller.New(cfg, hw, db, clk, logger)
	if err := ctrl.Load(); err != nil {
		logger.Error("failed to load entities", "error", err)
		os.Exit(1)
	}

	httpServer := api.NewServer(cfg.Server.HTTP, ctrl, logger)
	if err := httpServer.Start(); err != nil {
		logger.Error("failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	var mqttClient *mqttbridge.Client
	if cfg.MQTT != nil {
		mqttClient = mqttbridge.NewClient(&mqttbridge.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.TopicPrefix,
		}, ctrl, logger)
		if err := mqttClient.Start(); err != nil {
			logger.Error("failed to start MQTT bridge", "error", err)
		}
	}

	var modbusServer *modbus.Server
	if cfg.Modbus != nil {
		modbusServer = modbus.NewServer(&modbus.Config{Port: cfg.Modbus.Port}, ctrl, logger)
		if err := modbusServer.Start(); err != nil {
			logger.Error("failed to start Modbus server", "error", err)
		}
	}

	logger.Info("tau daemon ready",
		"http", cfg.Server.HTTP,
		"mqtt", cfg.MQTT != nil,
		"modbus", cfg.Modbus != nil,
		"persistence", db != nil)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(runCtx)
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("control loop terminated", "error", err)
	}

	logger.Info("initiating graceful shutdown...")

	if mqttClient != nil {
		mqttClient.Stop()
	}
	if modbusServer != nil {
		modbusServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Warn("state database close failed", "error", err)
		}
	}

	logger.Info("tau daemon stopped")
}

func buildDMX(cfg *config.Config, logger *slog.Logger) hardware.DMXWriter {
	switch cfg.Hardware.DMXDriver {
	case "serial":
		return hardware.NewSerialDMX(hardware.SerialDMXConfig{
			Device: cfg.Hardware.SerialDevice,
			Baud:   cfg.Hardware.SerialBaud,
		}, logger)
	default:
		return hardware.NewMockDMX()
	}
}

func buildDAQ(cfg *config.Config) hardware.DAQ {
	switch cfg.Hardware.DAQDriver {
	case "none":
		return hardware.NoopDAQ{}
	default:
		return hardware.NewMockDAQ()
	}
}

func buildGPIO(cfg *config.Config, logger *slog.Logger) hardware.GPIO {
	switch cfg.Hardware.GPIODriver {
	case "periph":
		return hardware.NewPeriphGPIO(logger)
	case "none":
		return hardware.NoopGPIO{}
	default:
		return hardware.NewMockGPIO()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
