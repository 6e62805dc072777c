// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package api is the HTTP/WebSocket facade adapter: REST control
// endpoints over the controller operations plus a WebSocket stream of
// broadcaster events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tau-daemon/internal/controller"
	"tau-daemon/internal/model"
)

// Server is the HTTP/WebSocket facade
type Server struct {
	ctrl     *controller.Controller
	logger   *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer creates the facade server
func NewServer(addr string, ctrl *controller.Controller, logger *slog.Logger) *Server {
	s := &Server{
		ctrl:   ctrl,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/fixtures", s.handleFixtures)
	mux.HandleFunc("/api/fixtures/", s.handleFixture)
	mux.HandleFunc("/api/groups/", s.handleGroup)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/scenes/", s.handleScene)
	mux.HandleFunc("/api/scenes/capture", s.handleCapture)
	mux.HandleFunc("/api/all-off", s.handleAllOff)
	mux.HandleFunc("/api/panic-on", s.handlePanicOn)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start starts serving in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP facade starting", "addr", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP dispatches through the mux, for tests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// handleWebSocket streams broadcaster events to the client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.ctrl.Broadcaster().Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// fixtureControlRequest is the control payload for fixtures
type fixtureControlRequest struct {
	Brightness      *float64 `json:"brightness,omitempty"`
	CCT             *float64 `json:"cct,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Easing          string   `json:"easing,omitempty"`
	Proportional    bool     `json:"proportional,omitempty"`
}

// groupControlRequest is the control payload for groups
type groupControlRequest struct {
	Brightness *float64 `json:"brightness,omitempty"`
	CCT        *float64 `json:"cct,omitempty"`
	Circadian  *bool    `json:"circadian,omitempty"`
	Unlock     bool     `json:"sleep_unlock,omitempty"`
}

// captureRequest is the scene capture payload
type captureRequest struct {
	Name            string `json:"name"`
	FixtureIDs      []int  `json:"fixture_ids,omitempty"`
	IncludeGroups   []int  `json:"include_group_ids,omitempty"`
	ExcludeFixtures []int  `json:"exclude_fixture_ids,omitempty"`
	ExcludeGroups   []int  `json:"exclude_group_ids,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.ctrl.Stats())
}

func (s *Server) handleFixtures(w http.ResponseWriter, r *http.Request) {
	type fixtureView struct {
		ID         int     `json:"id"`
		Name       string  `json:"name"`
		Brightness float64 `json:"brightness"`
		Goal       float64 `json:"goal_brightness"`
		CCT        float64 `json:"cct"`
		Effective  any     `json:"effective"`
	}

	var out []fixtureView
	for _, id := range s.ctrl.Store().FixtureIDs() {
		fr, ok := s.ctrl.Store().FixtureState(id)
		if !ok {
			continue
		}
		eff, _ := s.ctrl.Compositor().Effective(id)
		out = append(out, fixtureView{
			ID:         id,
			Name:       fr.Fixture.Name,
			Brightness: fr.CurrentBrightness,
			Goal:       fr.GoalBrightness,
			CCT:        fr.CurrentCCT,
			Effective:  eff,
		})
	}
	s.jsonResponse(w, out)
}

func (s *Server) handleFixture(w http.ResponseWriter, r *http.Request) {
	id, ok := trailingID(r.URL.Path, "/api/fixtures/")
	if !ok {
		http.Error(w, "invalid fixture id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		fr, ok := s.ctrl.Store().FixtureState(id)
		if !ok {
			http.Error(w, "fixture not found", http.StatusNotFound)
			return
		}
		eff, _ := s.ctrl.Compositor().Effective(id)
		s.jsonResponse(w, map[string]any{
			"id":                 id,
			"name":               fr.Fixture.Name,
			"current_brightness": fr.CurrentBrightness,
			"goal_brightness":    fr.GoalBrightness,
			"current_cct":        fr.CurrentCCT,
			"goal_cct":           fr.GoalCCT,
			"transitioning":      fr.BrightnessTransition.Active || fr.CCTTransition.Active,
			"effective":          eff,
		})

	case http.MethodPost:
		var req fixtureControlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts := controller.ControlOpts{
			DurationSeconds: req.DurationSeconds,
			Easing:          req.Easing,
			Proportional:    req.Proportional,
		}

		updated := false
		if req.Brightness != nil {
			if err := s.ctrl.SetFixtureBrightness(id, *req.Brightness, opts); err != nil {
				s.domainError(w, err)
				return
			}
			updated = true
		}
		if req.CCT != nil {
			if err := s.ctrl.SetFixtureCCT(id, *req.CCT, opts); err != nil {
				s.domainError(w, err)
				return
			}
			updated = true
		}
		if !updated {
			http.Error(w, "no control values provided", http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := trailingID(r.URL.Path, "/api/groups/")
	if !ok {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		gr, ok := s.ctrl.Store().GroupState(id)
		if !ok {
			http.Error(w, "group not found", http.StatusNotFound)
			return
		}
		s.jsonResponse(w, map[string]any{
			"id":                id,
			"name":              gr.Group.Name,
			"brightness":        gr.Brightness,
			"circadian_enabled": gr.Group.CircadianEnabled,
			"members":           s.ctrl.Store().MembersOf(id),
		})

	case http.MethodPost:
		var req groupControlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Brightness != nil {
			if err := s.ctrl.SetGroupBrightness(id, *req.Brightness); err != nil {
				s.domainError(w, err)
				return
			}
		}
		if req.CCT != nil {
			if err := s.ctrl.SetGroupCCT(id, *req.CCT); err != nil {
				s.domainError(w, err)
				return
			}
		}
		if req.Circadian != nil {
			var err error
			if *req.Circadian {
				err = s.ctrl.EnableCircadian(id)
			} else {
				err = s.ctrl.DisableCircadian(id)
			}
			if err != nil {
				s.domainError(w, err)
				return
			}
		}
		if req.Unlock {
			if err := s.ctrl.GrantSleepUnlock(id); err != nil {
				s.domainError(w, err)
				return
			}
		}
		s.jsonResponse(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.ctrl.Scenes().Scenes())
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/scenes/")
	if path == "capture" {
		s.handleCapture(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid scene id", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "recall" && r.Method == http.MethodPost {
		if err := s.ctrl.RecallScene(id); err != nil {
			s.domainError(w, err)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "ok"})
		return
	}

	scene, ok := s.ctrl.Scenes().Get(id)
	if !ok {
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, scene)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.ctrl.CaptureScene(req.Name, req.FixtureIDs, req.IncludeGroups, req.ExcludeFixtures, req.ExcludeGroups)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, map[string]any{"status": "ok", "scene_id": id})
}

func (s *Server) handleAllOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.AllOff(); err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePanicOn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.PanicAllOn(); err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// domainError maps typed store errors to HTTP statuses
func (s *Server) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownFixture),
		errors.Is(err, model.ErrUnknownGroup),
		errors.Is(err, model.ErrUnknownScene),
		errors.Is(err, model.ErrUnknownProfile):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrBrightnessRange),
		errors.Is(err, model.ErrCCTRange),
		errors.Is(err, model.ErrChannelRange),
		errors.Is(err, model.ErrDualSwitchTarget),
		errors.Is(err, model.ErrGroupDepth):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// trailingID extracts the numeric id after a path prefix
func trailingID(path, prefix string) (int, bool) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimSuffix(rest, "/")
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
