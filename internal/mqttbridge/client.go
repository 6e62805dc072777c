// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package mqttbridge forwards broadcaster events to an MQTT broker and
// accepts JSON control commands on the command topic.
package mqttbridge

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tau-daemon/internal/controller"
)

// Config for the MQTT bridge
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
}

// Client is the MQTT bridge
type Client struct {
	cfg      *Config
	ctrl     *controller.Controller
	logger   *slog.Logger
	client   mqtt.Client
	stopChan chan struct{}
}

// command is the JSON payload accepted on <prefix>/cmd
type command struct {
	Cmd        string   `json:"cmd"` // set_fixture, set_group, recall_scene, all_off, panic_on
	ID         int      `json:"id,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	CCT        *float64 `json:"cct,omitempty"`
}

// NewClient creates the bridge
func NewClient(cfg *Config, ctrl *controller.Controller, logger *slog.Logger) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = "tau"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "tau-daemon"
	}
	return &Client{
		cfg:      cfg,
		ctrl:     ctrl,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start connects to the broker and begins forwarding events
func (c *Client) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	go c.forwardEvents()

	c.logger.Info("MQTT bridge started", "broker", c.cfg.Broker, "prefix", c.cfg.Prefix)
	return nil
}

// Stop disconnects from the broker
func (c *Client) Stop() {
	close(c.stopChan)
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(1000)
	}
	c.logger.Info("MQTT bridge stopped")
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected")
	cmdTopic := c.cfg.Prefix + "/cmd"
	client.Subscribe(cmdTopic, 1, c.handleCommand)
	c.publishStatus()
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection lost", "error", err)
}

// handleCommand processes one incoming control message
func (c *Client) handleCommand(client mqtt.Client, msg mqtt.Message) {
	var cmd command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		c.logger.Debug("invalid MQTT command", "error", err)
		return
	}

	var err error
	switch cmd.Cmd {
	case "set_fixture":
		if cmd.Brightness != nil {
			err = c.ctrl.SetFixtureBrightness(cmd.ID, *cmd.Brightness, controller.ControlOpts{Proportional: true})
		}
		if err == nil && cmd.CCT != nil {
			err = c.ctrl.SetFixtureCCT(cmd.ID, *cmd.CCT, controller.ControlOpts{Proportional: true})
		}
	case "set_group":
		if cmd.Brightness != nil {
			err = c.ctrl.SetGroupBrightness(cmd.ID, *cmd.Brightness)
		}
		if err == nil && cmd.CCT != nil {
			err = c.ctrl.SetGroupCCT(cmd.ID, *cmd.CCT)
		}
	case "recall_scene":
		err = c.ctrl.RecallScene(cmd.ID)
	case "all_off":
		err = c.ctrl.AllOff()
	case "panic_on":
		err = c.ctrl.PanicAllOn()
	default:
		c.logger.Debug("unknown MQTT command", "cmd", cmd.Cmd)
		return
	}

	if err != nil {
		c.logger.Warn("MQTT command failed", "cmd", cmd.Cmd, "id", cmd.ID, "error", err)
	}

	respTopic := c.cfg.Prefix + "/response"
	resp := map[string]any{"cmd": cmd.Cmd, "ok": err == nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	data, _ := json.Marshal(resp)
	client.Publish(respTopic, 0, false, data)
}

// forwardEvents publishes broadcaster events to <prefix>/event
func (c *Client) forwardEvents() {
	events, cancel := c.ctrl.Broadcaster().Subscribe()
	defer cancel()

	topic := c.cfg.Prefix + "/event"
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if c.client == nil || !c.client.IsConnected() {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.client.Publish(topic, 0, false, data)
		case <-c.stopChan:
			return
		}
	}
}

// publishStatus publishes a retained status snapshot
func (c *Client) publishStatus() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	data, _ := json.Marshal(map[string]any{"type": "status", "data": c.ctrl.Stats()})
	c.client.Publish(c.cfg.Prefix+"/status", 0, true, data)
}
