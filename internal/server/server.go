// Package server exposes the control API observers use to read session
// state and drive the bridge: listing sessions, reading transcripts,
// submitting prompts, interrupting, and answering question/permission
// requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agentdeck/agentdeck/internal/bridge"
	"github.com/agentdeck/agentdeck/internal/opencode"
	"github.com/agentdeck/agentdeck/internal/storage"
)

// SessionCreator creates sessions on the agent server. *opencode.Client
// satisfies it.
type SessionCreator interface {
	CreateSession(ctx context.Context, title string) (*opencode.SessionInfo, error)
}

// Server is the HTTP control surface.
type Server struct {
	router  *chi.Mux
	bridge  *bridge.Bridge
	creator SessionCreator
	store   storage.SessionStore
	logger  *slog.Logger
}

// New assembles the control API. creator and store may be nil; the
// endpoints needing them respond 503.
func New(b *bridge.Bridge, creator SessionCreator, store storage.SessionStore, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		bridge:  b,
		creator: creator,
		store:   store,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/transcript", s.handleTranscript)
		r.Get("/sessions/{id}/logs", s.handleLogs)
		r.Post("/sessions/{id}/prompt", s.handlePrompt)
		r.Post("/sessions/{id}/interrupt", s.handleInterrupt)
		r.Post("/questions/{id}/reply", s.handleQuestionReply)
		r.Post("/permissions/{id}/reply", s.handlePermissionReply)
	})
}

// Handler returns the root handler wrapped with tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "control-api")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last, connected := s.bridge.LastHeartbeat()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"connected":     connected,
		"lastHeartbeat": last.Format(time.RFC3339),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.bridge.Views()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.bridge.View(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.creator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "agent endpoint not configured")
		return
	}
	var req struct {
		Intent string `json:"intent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := s.creator.CreateSession(r.Context(), req.Intent)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	var local *storage.Session
	if s.store != nil {
		local = &storage.Session{
			ID:         "ses_" + uuid.New().String(),
			Intent:     req.Intent,
			ExternalID: info.ID,
			Status:     "idle",
		}
		if err := s.store.CreateSession(r.Context(), local); err != nil {
			s.logger.Error("failed to persist session",
				slog.String("external_id", info.ID),
				slog.String("error", err.Error()),
			)
			local = nil
		}
	}

	s.bridge.SetActiveSession(info.ID, local)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"externalID": info.ID,
		"session":    local,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.bridge.Status(id); !ok {
		s.writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": s.bridge.Transcript(id)})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	id := chi.URLParam(r, "id")
	logs, err := s.store.ListLogs(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": logs})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Text string `json:"text"`
		Cwd  string `json:"cwd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.bridge.SubmitTo(r.Context(), id, req.Text, req.Cwd); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.bridge.Interrupt(r.Context(), id)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuestionReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		SessionID string     `json:"sessionID"`
		Answers   [][]string `json:"answers"`
		Response  string     `json:"response"`
		Reject    bool       `json:"reject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Reject {
		err = s.bridge.RejectQuestion(r.Context(), req.SessionID, id)
	} else {
		err = s.bridge.AnswerQuestion(r.Context(), req.SessionID, id, req.Answers, req.Response)
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePermissionReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		SessionID string `json:"sessionID"`
		Reply     string `json:"reply"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Reply {
	case "once", "always", "reject":
	default:
		s.writeError(w, http.StatusBadRequest, "reply must be once, always, or reject")
		return
	}

	err := s.bridge.ResolvePermission(r.Context(), req.SessionID, id, opencode.PermissionReply{
		Reply:   req.Reply,
		Message: req.Message,
	})
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
