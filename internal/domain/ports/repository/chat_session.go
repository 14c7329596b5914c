package repository

import (
	"context"
	"time"

	"ollama-web-chat/internal/domain/model"
)

// ChatSessionRepository is the persistence port for chat sessions.
//
// AppendMessage must be atomic at the storage layer (a single row insert, not
// a whole-session rewrite) so that two concurrent appends to one session can
// never clobber each other.
type ChatSessionRepository interface {
	// Save upserts the session row (system prompt, selected model, timestamps).
	// It never touches messages.
	Save(ctx context.Context, session *model.ChatSession) error

	// FindByID loads a session with its full ordered message history.
	// Returns domain.ErrNotFound when no session matches.
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)

	// AppendMessage inserts one message and bumps the session's updated_at.
	AppendMessage(ctx context.Context, message *model.ChatMessage) error

	// ListRecent returns sessions ordered by updated_at descending, with
	// messages loaded, honoring limit/skip.
	ListRecent(ctx context.Context, limit, skip int) ([]*model.ChatSession, error)

	// CountOlderThan reports how many sessions were last touched before cutoff.
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOlderThan removes sessions last touched before cutoff and returns
	// the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Delete removes one session; the bool reports whether a row existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Ping verifies store reachability for health checks.
	Ping(ctx context.Context) error
}
