// File: internal/infra/web/handlers.go
package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/adapter"
	"ollama-web-chat/internal/infra/logging"
	"ollama-web-chat/internal/infra/metrics"
)

// handleIndex resolves the session to show: the query parameter when valid,
// the most recently active session when absent, a fresh one otherwise.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		recent, err := s.sessions.ListSessions(r.Context(), 1, 0)
		if err != nil {
			s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not load your chats. Please try again.")
			return
		}
		if len(recent) > 0 {
			http.Redirect(w, r, "/?session="+recent[0].SessionID, http.StatusSeeOther)
			return
		}
		sessionID = model.NewSessionID()
	}

	view, err := s.flow.RenderChat(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			// Malformed id in the URL: hand out a fresh session instead of a
			// dead end.
			http.Redirect(w, r, "/?session="+model.NewSessionID(), http.StatusSeeOther)
			return
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("render chat")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not load this chat. Please try again.")
		return
	}
	s.renderChat(w, r, http.StatusOK, view)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PostFormValue("session")
	content := r.PostFormValue("message")
	ctx := logging.WithSessID(r.Context(), sessionID)

	view, err := s.flow.PostMessage(ctx, sessionID, content)
	if err != nil {
		s.renderChatError(w, r, sessionID, err)
		return
	}
	s.renderChat(w, r, http.StatusOK, view)
}

// renderChatError puts recoverable errors inline on the chat view so the
// conversation stays on screen; anything else falls back to the error page.
func (s *Server) renderChatError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, domain.ErrGenerationInProgress):
		status = http.StatusConflict
		msg = "A response is already being generated for this chat. Please wait for it to finish."
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		msg = "Invalid request: " + err.Error()
	default:
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("post message")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Your message could not be saved. Please try again.")
		return
	}

	view, rerr := s.flow.RenderChat(r.Context(), sessionID)
	if rerr != nil {
		s.log.Error().Err(rerr).Str("session_id", sessionID).Msg("render after rejected post")
		s.renderErrorPage(w, r, http.StatusInternalServerError, msg)
		return
	}
	view.Error = msg
	s.renderChat(w, r, status, view)
}

func (s *Server) handleCheckResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	lastCount, _ := strconv.Atoi(r.URL.Query().Get("count"))

	view, err := s.flow.CheckResponse(r.Context(), sessionID, lastCount)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("check response")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not load this chat. Please try again.")
		return
	}
	s.renderChat(w, r, http.StatusOK, view)
}

func (s *Server) handleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PostFormValue("session")
	prompt := r.PostFormValue("prompt")

	if _, err := s.sessions.UpdateSystemPrompt(r.Context(), sessionID, prompt); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			s.renderChatError(w, r, sessionID, err)
			return
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("update system prompt")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not save the system prompt. Please try again.")
		return
	}
	http.Redirect(w, r, "/?session="+sessionID, http.StatusSeeOther)
}

// handleModelSelection checks the requested model against the live directory
// before persisting it; an unknown name never reaches storage.
func (s *Server) handleModelSelection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PostFormValue("session")
	modelName := strings.TrimSpace(r.PostFormValue("model"))

	available := s.ai.ListModels(r.Context())
	if len(available) > 0 {
		found := false
		for _, m := range available {
			if m.Name == modelName {
				found = true
				break
			}
		}
		if !found {
			s.renderChatError(w, r, sessionID,
				domain.NewValidationError("model", "model "+modelName+" is not available"))
			return
		}
	}

	if _, err := s.sessions.UpdateSelectedModel(r.Context(), sessionID, modelName); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			s.renderChatError(w, r, sessionID, err)
			return
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("update selected model")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not switch models. Please try again.")
		return
	}
	http.Redirect(w, r, "/?session="+sessionID, http.StatusSeeOther)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := s.sessions.DeleteSession(r.Context(), sessionID)
	if err != nil && !errors.Is(err, domain.ErrInvalidArgument) {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("delete session")
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Could not delete this chat. Please try again.")
		return
	}
	if deleted {
		metrics.IncSessionDeleted()
	}

	remaining, err := s.sessions.ListSessions(r.Context(), 1, 0)
	if err == nil && len(remaining) > 0 {
		http.Redirect(w, r, "/?session="+remaining[0].SessionID, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	summaries, err := s.sessions.ListSessions(r.Context(), limit, skip)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, jsonError{Error: "failed to list sessions"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := "ok"
	dbStatus := "connected"
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		overall = "degraded"
		dbStatus = "disconnected"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{
		"status":   overall,
		"database": dbStatus,
		"ollama":   s.ai.HealthCheck(r.Context()),
	})
}

func (s *Server) handleHealthOllama(w http.ResponseWriter, r *http.Request) {
	status := s.ai.HealthCheck(r.Context())
	code := http.StatusOK
	if status != adapter.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"status": status,
		"models": s.ai.ListModels(r.Context()),
	})
}
