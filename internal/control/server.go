// Package control exposes the assistant's HTTP surface: dashboard
// endpoints, health checks and metrics.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/chatlog"
	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/events"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/session"
)

// ThresholdSetter applies a runtime VAD threshold change to the live
// wake gate in addition to persisting it.
type ThresholdSetter func(threshold int)

// Server handles control-surface requests.
type Server struct {
	cfg          *config.Config
	registry     *config.Registry
	controller   *session.Controller
	log          *chatlog.Log
	hub          *events.Hub
	setThreshold ThresholdSetter
	restart      session.RestartRequest
	logger       zerolog.Logger

	httpServer *http.Server
}

// NewServer wires the routes.
func NewServer(
	cfg *config.Config,
	registry *config.Registry,
	controller *session.Controller,
	log *chatlog.Log,
	hub *events.Hub,
	setThreshold ThresholdSetter,
	restart session.RestartRequest,
	readiness map[string]observability.HealthCheckFunc,
) *Server {
	s := &Server{
		cfg:          cfg,
		registry:     registry,
		controller:   controller,
		log:          log,
		hub:          hub,
		setThreshold: setThreshold,
		restart:      restart,
		logger:       observability.ComponentLogger("control"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcript", s.handleTranscript)
	mux.HandleFunc("/wake", s.handleWake)
	mux.HandleFunc("/vad-threshold", s.handleVADThreshold)
	mux.HandleFunc("/assistant", s.handleAssistant)
	mux.HandleFunc("/chatlog/", s.handleChatLog)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(readiness))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.cfg.Port).Msg("Control server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// transcriptRequest is a dashboard-submitted request, optionally with a
// base64 JPEG attachment.
type transcriptRequest struct {
	Transcript string `json:"transcript"`
	Image      string `json:"image,omitempty"`
	ImageName  string `json:"image_name,omitempty"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Shares the voice path's at-most-one-in-flight guard.
	if err := s.controller.ProcessTranscript(r.Context(), req.Transcript, req.Image, req.ImageName); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "done"})
}

// handleWake is the push-to-talk entry: a GPIO button daemon or the
// dashboard posts here instead of speaking the wake word. The session
// runs in the background so the button press returns immediately.
func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controller.Busy() {
		http.Error(w, "a request is already being processed", http.StatusConflict)
		return
	}

	go s.controller.HandleExternalWake(context.Background())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "listening"})
}

type thresholdRequest struct {
	Threshold int `json:"threshold"`
}

func (s *Server) handleVADThreshold(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, thresholdRequest{Threshold: s.registry.VADThreshold()})
	case http.MethodPost:
		var req thresholdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.registry.SetVADThreshold(req.Threshold); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if s.setThreshold != nil {
			s.setThreshold(req.Threshold)
		}
		writeJSON(w, map[string]string{"status": "updated"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type assistantRequest struct {
	Assistant string `json:"assistant"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		active, profile := s.registry.Active()
		writeJSON(w, map[string]interface{}{
			"active":     active,
			"name":       profile.Name,
			"assistants": s.registry.Keys(),
		})
	case http.MethodPost:
		var req assistantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		key := strings.ToLower(strings.TrimSpace(req.Assistant))
		if err := s.registry.SetActive(key); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if s.restart != nil {
			s.restart(key)
		}
		writeJSON(w, map[string]string{"status": "switching", "assistant": key})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleChatLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimPrefix(r.URL.Path, "/chatlog/")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be formatted YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.log.ForDate(date))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}
