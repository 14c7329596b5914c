package redis

import (
	"context"
	"encoding/json"
	"time"

	"ollama-web-chat/internal/domain/model"
)

// SessionCache keeps a JSON copy of recently touched sessions. The TTL is the
// configured retention window, so entries for abandoned sessions expire on
// their own at the storage layer.
type SessionCache struct {
	client *Client
	ttl    time.Duration
}

func NewSessionCache(client *Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "chat_session:" + id }

func (c *SessionCache) Store(ctx context.Context, session *model.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(session.ID), data, c.ttl)
}

func (c *SessionCache) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	data, err := c.client.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	var session model.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *SessionCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, sessionKey(sessionID))
}
