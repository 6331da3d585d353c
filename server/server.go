package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hupe1980/querymesh"
	"github.com/hupe1980/querymesh/core"
	"github.com/hupe1980/querymesh/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// HistoryLimit is the default cap for history listings when the caller
	// supplies none.
	HistoryLimit int
	// SessionTimeout is the activity window used for the session listing
	// and statistics endpoints.
	SessionTimeout time.Duration
	// CleanupMaxAge is the default retention window for the cleanup
	// trigger.
	CleanupMaxAge time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Server serves the HTTP API for one Mesh.
type Server struct {
	mesh *querymesh.Mesh
	mux  *http.ServeMux

	historyLimit   int
	sessionTimeout time.Duration
	cleanupMaxAge  time.Duration
	logger         logging.Logger
}

// New constructs a Server with all routes registered.
func New(mesh *querymesh.Mesh, optFns ...func(o *Options)) *Server {
	opts := Options{
		HistoryLimit:   50,
		SessionTimeout: 24 * time.Hour,
		CleanupMaxAge:  24 * time.Hour,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		mesh:           mesh,
		mux:            http.NewServeMux(),
		historyLimit:   opts.HistoryLimit,
		sessionTimeout: opts.SessionTimeout,
		cleanupMaxAge:  opts.CleanupMaxAge,
		logger:         opts.Logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/stats", s.handleSessionStats)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /sessions/{id}/history", s.handleSessionHistory)
	s.mux.HandleFunc("GET /agents", s.handleAgentOverview)
	s.mux.HandleFunc("GET /agents/active", s.handleActiveAgents)
	s.mux.HandleFunc("GET /agents/history", s.handleAgentHistory)
	s.mux.HandleFunc("GET /agents/statistics", s.handleAgentStatistics)
	s.mux.HandleFunc("POST /agents/cleanup", s.handleAgentCleanup)
	s.mux.HandleFunc("GET /agents/{id}", s.handleAgentStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// errorPayload is the uniform boundary error shape.
type errorPayload struct {
	Error      string `json:"error"`
	RequestID  string `json:"request_id"`
	StatusCode int    `json:"status_code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorPayload{
		Error:      msg,
		RequestID:  core.NewID(),
		StatusCode: status,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent. The ok result is false on a malformed value.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
