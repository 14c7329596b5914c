// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"ollama-web-chat/internal/config"
	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/repository"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

type SessionUseCase interface {
	GetOrCreate(ctx context.Context, sessionID string) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID, role, content string) (*model.ChatSession, error)
	UpdateSystemPrompt(ctx context.Context, sessionID, prompt string) (*model.ChatSession, error)
	UpdateSelectedModel(ctx context.Context, sessionID, modelName string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, limit, skip int) ([]model.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	CleanupOldSessions(ctx context.Context, daysOld int) (int64, error)
}

type sessionUC struct {
	sessions     repository.ChatSessionRepository
	cfg          config.ChatConfig
	defaultModel string
}

func NewSessionUseCase(sessions repository.ChatSessionRepository, cfg config.ChatConfig, defaultModel string) *sessionUC {
	return &sessionUC{sessions: sessions, cfg: cfg, defaultModel: defaultModel}
}

// GetOrCreate fetches the session, creating it on first reference. Sessions
// persisted before model selection existed may carry an empty SelectedModel;
// normalizeOnLoad backfills it exactly once.
func (u *sessionUC) GetOrCreate(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	if err := validateSessionID(sessionID, u.cfg.SessionIDMinLength, u.cfg.SessionIDMaxLength); err != nil {
		return nil, err
	}

	s, err := u.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		s = model.NewChatSession(sessionID, u.defaultModel)
		if err := u.sessions.Save(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return u.normalizeOnLoad(ctx, s)
}

// normalizeOnLoad is the single place the lazy SelectedModel backfill happens.
// It persists only when the field was actually missing, so repeated reads of a
// normalized session issue no writes. The backfill deliberately leaves
// UpdatedAt alone: a silent migration is not a user mutation.
func (u *sessionUC) normalizeOnLoad(ctx context.Context, s *model.ChatSession) (*model.ChatSession, error) {
	if s.SelectedModel != "" {
		return s, nil
	}
	s.SelectedModel = u.defaultModel
	if err := u.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// AppendMessage validates, trims, stamps, and atomically appends one message,
// returning the full updated session so callers see a current message list.
func (u *sessionUC) AppendMessage(ctx context.Context, sessionID, role, content string) (*model.ChatSession, error) {
	if err := validateRole(role); err != nil {
		return nil, err
	}
	trimmed, err := validateMessageContent(content, u.cfg.MaxMessageLength)
	if err != nil {
		return nil, err
	}

	s, err := u.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msg := s.AddMessage(role, trimmed)
	if err := u.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSystemPrompt sets the session-level system prompt. An empty string is
// a valid value and clears the prompt.
func (u *sessionUC) UpdateSystemPrompt(ctx context.Context, sessionID, prompt string) (*model.ChatSession, error) {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) > u.cfg.MaxSystemPromptLength {
		return nil, domain.NewValidationError("systemPrompt", "system prompt is too long")
	}

	s, err := u.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.SystemPrompt = trimmed
	s.UpdatedAt = time.Now()
	if err := u.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSelectedModel persists the model preference. Availability against the
// live directory is the caller's responsibility; this stays a pure
// persistence operation.
func (u *sessionUC) UpdateSelectedModel(ctx context.Context, sessionID, modelName string) (*model.ChatSession, error) {
	trimmed := strings.TrimSpace(modelName)
	if trimmed == "" {
		return nil, domain.NewValidationError("selectedModel", "model name cannot be empty")
	}

	s, err := u.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.SelectedModel = trimmed
	s.UpdatedAt = time.Now()
	if err := u.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns summaries sorted by recency (updated_at descending).
// The redirect-to-most-recent flow relies on that ordering.
func (u *sessionUC) ListSessions(ctx context.Context, limit, skip int) ([]model.SessionSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	sessions, err := u.sessions.ListRecent(ctx, limit, skip)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	return summaries, nil
}

// DeleteSession removes the session; deleting an unknown id is not an error.
func (u *sessionUC) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID, u.cfg.SessionIDMinLength, u.cfg.SessionIDMaxLength); err != nil {
		return false, err
	}
	return u.sessions.Delete(ctx, sessionID)
}

// CleanupOldSessions deletes sessions untouched for daysOld days (clamped to
// at least 1) and returns the exact count removed. When nothing qualifies no
// delete is issued.
func (u *sessionUC) CleanupOldSessions(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 1 {
		daysOld = u.cfg.CleanupDays
		if daysOld < 1 {
			daysOld = 1
		}
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)

	n, err := u.sessions.CountOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return u.sessions.DeleteOlderThan(ctx, cutoff)
}
