package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/locosim/loco/config"
	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/service"
	"github.com/wricardo/mcp-training/locosim/loco/session"
	"github.com/wricardo/mcp-training/locosim/transport/websocket"
)

// EventStep is the websocket event carrying the events raised by a step
const EventStep = "step_events"

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// Server represents the REST API server
type Server struct {
	service service.DriveService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer creates a new API server. hub may be nil.
func NewServer(driveService service.DriveService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: driveService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Cab operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/controls", s.handleSetControls).Methods("PUT", "POST")
	api.HandleFunc("/sessions/{id}/step", s.handleStep).Methods("POST")
	api.HandleFunc("/sessions/{id}/shift", s.handleShift).Methods("POST")
	api.HandleFunc("/sessions/{id}/engines/{engine}/{command:start|stop}", s.handleEngineCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/refuel", s.handleRefuel).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/telemetry", s.handleTelemetry).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message, "code": status})
}

// respondServiceError maps service errors to status codes
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, diesel.ErrUnknownEngine):
		status = http.StatusNotFound
	case errors.Is(err, locomotive.ErrNoGearbox),
		errors.Is(err, locomotive.ErrFuelExhausted):
		status = http.StatusConflict
	case errors.Is(err, service.ErrTelemetryDisabled):
		status = http.StatusNotImplemented
	}
	respondError(w, status, err.Error())
}

// decodeBody decodes an optional JSON body into v
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) broadcast(sessionID string, readout *locomotive.Readout) {
	if s.hub != nil && readout != nil {
		s.hub.BroadcastToSession(sessionID, readout)
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // Deprecated, use config_id
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = req.ConfigName
	}

	info, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	total := len(sessions)

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventSessionGone, nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Cab Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	readout, err := s.service.GetReadout(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, readout)
}

func (s *Server) handleSetControls(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req service.ControlsRequest
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.SetControls(r.Context(), sessionID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, info.Readout)
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req service.StepRequest
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.Step(r.Context(), sessionID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.Readout)
	if s.hub != nil && len(result.Events) > 0 {
		s.hub.BroadcastEvent(sessionID, EventStep, result.Events)
	}

	s.log.Info().
		Str("session", sessionID).
		Int("ticks", result.TicksExecuted).
		Float64("force_n", result.Output.ForceN).
		Float64("speed_mps", result.Train.SpeedMpS).
		Int("gear", result.Output.Gear).
		Int("events", len(result.Events)).
		Msg("Step")

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.Shift(r.Context(), sessionID, req.Direction)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, info.Readout)
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleEngineCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	engine, err := parseEngine(vars["engine"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.EngineCommand(r.Context(), sessionID, engine, vars["command"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.Readout)
	respondJSON(w, http.StatusOK, result)
}

// parseEngine accepts a zero-based engine index or "all"
func parseEngine(s string) (int, error) {
	if strings.EqualFold(s, "all") {
		return locomotive.AllEngines, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: engine must be an index or \"all\", got %q", service.ErrInvalidRequest, s)
	}
	return i, nil
}

func (s *Server) handleRefuel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Liters float64 `json:"liters"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.Refuel(r.Context(), sessionID, req.Liters)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.Readout)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	info, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, info.Readout)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Locomotive reset successfully",
		"session": info,
	})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := s.service.GetTelemetry(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	cfg, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_]+`)

// configIDFromName turns a display name into a file-safe identifier
func configIDFromName(name string) string {
	id := nonIDChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(id, "_")
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg locomotive.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if cfg.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := r.URL.Query().Get("id")
	if configID == "" {
		configID = configIDFromName(cfg.Name)
	}

	if err := s.service.SaveConfig(r.Context(), configID, &cfg); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket not enabled", http.StatusNotFound)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
