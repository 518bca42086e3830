// Package adminapi is a small HTTP surface for operators: health, the list
// of active sessions, and forced release of a stuck registry entry. It is
// meant to listen on a trusted interface; callers reaching it are
// privileged by construction.
package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/user/relatobot/internal/registry"
	"github.com/user/relatobot/internal/types"
)

// Releaser force-clears a registry entry. Returns true if one was removed.
type Releaser func(initiator types.UserID) bool

// Server is a lightweight HTTP handler for the admin endpoints.
type Server struct {
	reg     *registry.Registry
	release Releaser
	mux     *http.ServeMux
}

// NewServer creates a Server over the given registry and release callback.
func NewServer(reg *registry.Registry, release Releaser) *Server {
	s := &Server{
		reg:     reg,
		release: release,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("POST /api/sessions/{initiator}/release", s.handleRelease)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type sessionResponse struct {
	ID          string `json:"id"`
	Initiator   string `json:"initiator"`
	Reporter    string `json:"reporter"`
	TargetLabel string `json:"target_label"`
	Channel     string `json:"channel,omitempty"`
	StartedAt   string `json:"started_at"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.reg.List()

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionResponse{
			ID:          string(sess.ID),
			Initiator:   string(sess.Initiator),
			Reporter:    sess.InitiatorName,
			TargetLabel: sess.TargetLabel,
			Channel:     string(sess.Channel),
			StartedAt:   sess.StartedAt.Format(time.RFC3339),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt < result[j].StartedAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	initiator := types.UserID(r.PathValue("initiator"))
	if initiator == "" {
		http.Error(w, `{"error":"initiator required"}`, http.StatusBadRequest)
		return
	}

	removed := s.release(initiator)
	if !removed {
		http.Error(w, `{"error":"no active session for initiator"}`, http.StatusNotFound)
		return
	}

	slog.Info("session released via admin api", "initiator", string(initiator))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "released"})
}
