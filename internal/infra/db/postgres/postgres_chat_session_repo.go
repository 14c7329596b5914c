// File: internal/infra/db/postgres/postgres_chat_session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/repository"
	"ollama-web-chat/internal/infra/redis"
)

// ChatSessionRepo persists sessions in two tables: chat_sessions holds the
// session row, chat_messages holds one row per message. Appending a message
// is therefore a row insert, never a whole-session rewrite, so two concurrent
// appends to one session cannot clobber each other.
var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

type ChatSessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.SessionCache
}

func NewChatSessionRepo(pool *pgxpool.Pool, cache *redis.SessionCache) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, cache: cache}
}

// EnsureSchema creates the tables on startup when they do not exist yet.
func (r *ChatSessionRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS chat_sessions (
  id            TEXT PRIMARY KEY,
  system_prompt TEXT NOT NULL DEFAULT '',
  model         TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS chat_messages (
  id         BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
  role       TEXT NOT NULL,
  content    TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, id);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions (updated_at DESC);`
	_, err := r.pool.Exec(ctx, q)
	return err
}

func (r *ChatSessionRepo) Save(ctx context.Context, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, system_prompt, model, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  system_prompt = EXCLUDED.system_prompt,
  model = EXCLUDED.model,
  updated_at = EXCLUDED.updated_at;`
	if _, err := r.pool.Exec(ctx, q, s.ID, s.SystemPrompt, s.SelectedModel, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if r.cache != nil {
		_ = r.cache.Store(ctx, s)
	}
	return nil
}

// AppendMessage inserts the message row and bumps the session's updated_at in
// one transaction.
func (r *ChatSessionRepo) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qInsert = `
INSERT INTO chat_messages (session_id, role, content, created_at)
VALUES ($1,$2,$3,$4);`
	if _, err := tx.Exec(ctx, qInsert, m.SessionID, m.Role, m.Content, m.Timestamp); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// FK violation: the session row is gone.
			return domain.ErrNotFound
		}
		return fmt.Errorf("append message: %w", err)
	}

	const qTouch = `UPDATE chat_sessions SET updated_at=$2 WHERE id=$1;`
	if _, err := tx.Exec(ctx, qTouch, m.SessionID, m.Timestamp); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, m.SessionID)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	// Cache first; every write path invalidates, so a hit is never stale.
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}
	const qs = `SELECT id, system_prompt, model, created_at, updated_at FROM chat_sessions WHERE id=$1;`
	var s model.ChatSession
	if err := r.pool.QueryRow(ctx, qs, id).Scan(&s.ID, &s.SystemPrompt, &s.SelectedModel, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := r.loadMessages(ctx, &s); err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.Store(ctx, &s)
	}
	return &s, nil
}

func (r *ChatSessionRepo) loadMessages(ctx context.Context, s *model.ChatSession) error {
	const qm = `SELECT role, content, created_at FROM chat_messages WHERE session_id=$1 ORDER BY id ASC;`
	rows, err := r.pool.Query(ctx, qm, s.ID)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m := model.ChatMessage{SessionID: s.ID}
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		s.Messages = append(s.Messages, m)
	}
	return rows.Err()
}

func (r *ChatSessionRepo) ListRecent(ctx context.Context, limit, skip int) ([]*model.ChatSession, error) {
	const q = `SELECT id, system_prompt, model, created_at, updated_at
FROM chat_sessions ORDER BY updated_at DESC LIMIT $1 OFFSET $2;`
	rows, err := r.pool.Query(ctx, q, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		if err := rows.Scan(&s.ID, &s.SystemPrompt, &s.SelectedModel, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range out {
		if err := r.loadMessages(ctx, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ChatSessionRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM chat_sessions WHERE updated_at < $1;`
	var n int64
	if err := r.pool.QueryRow(ctx, q, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count old sessions: %w", err)
	}
	return n, nil
}

func (r *ChatSessionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// RETURNING the ids so the cache entries go with the rows; a cached copy
	// of a deleted session would resurrect it on the next lookup.
	const q = `DELETE FROM chat_sessions WHERE updated_at < $1 RETURNING id;`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan deleted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if r.cache != nil {
		for _, id := range ids {
			_ = r.cache.Invalidate(ctx, id)
		}
	}
	return int64(len(ids)), nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	const q = `DELETE FROM chat_sessions WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, id)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChatSessionRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
