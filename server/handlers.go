package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hupe1980/querymesh/coordinator"
	"github.com/hupe1980/querymesh/core"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req coordinator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "message must not be empty")
		return
	}

	resp, err := s.mesh.Chat(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	// Critical stage failures arrive here as a degraded response, not an
	// error; they are intentionally served with status 200.
	s.writeJSON(w, http.StatusOK, resp)
}

type createSessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := s.mesh.Sessions().Create(req.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		CreatedAt: sess.Created,
		Status:    "created",
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mesh.Sessions().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.mesh.Sessions().Delete(r.PathValue("id")) {
		s.writeError(w, http.StatusNotFound, core.ErrSessionNotFound.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", s.historyLimit)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	sess, err := s.mesh.Sessions().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	history := sess.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"history":    history,
	})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats := s.mesh.Sessions().Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions":        stats.TotalSessions,
		"active_sessions":       stats.ActiveSessions,
		"total_messages":        stats.TotalMessages,
		"session_timeout_hours": stats.SessionTimeout.Hours(),
	})
}

func (s *Server) handleAgentOverview(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"statistics": s.mesh.Registry().Statistics(),
		"active":     s.mesh.Registry().Active(),
	})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	exec, err := s.mesh.Registry().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleActiveAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active": s.mesh.Registry().Active(),
	})
}

func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", s.historyLimit)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	history := s.mesh.Registry().History(r.URL.Query().Get("session_id"), limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

func (s *Server) handleAgentStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.mesh.Registry().Statistics())
}

func (s *Server) handleAgentCleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := s.cleanupMaxAge
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		hours, ok := queryInt(r, "max_age_hours", 0)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid max_age_hours parameter")
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}
	removed := s.mesh.Registry().Cleanup(maxAge)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
