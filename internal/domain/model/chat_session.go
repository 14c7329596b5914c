package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message within a chat session. The system prompt is a
// session-level field, never a stored message.
type ChatMessage struct {
	SessionID string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is the aggregate root for one conversation. Messages are
// append-only in insertion order; that order is the conversation history
// handed to the AI runtime.
type ChatSession struct {
	ID            string        `json:"sessionId"`
	SystemPrompt  string        `json:"systemPrompt"`
	SelectedModel string        `json:"selectedModel"`
	Messages      []ChatMessage `json:"messages"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func NewChatSession(id, defaultModel string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:            id,
		SelectedModel: defaultModel,
		Messages:      make([]ChatMessage, 0, 8),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewSessionID generates a fresh server-side session id: a 26-char ULID,
// alphanumeric and within the accepted 10-50 char id format.
func NewSessionID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

func (s *ChatSession) AddMessage(role, content string) *ChatMessage {
	s.Messages = append(s.Messages, ChatMessage{
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
	return &s.Messages[len(s.Messages)-1]
}

// LastMessage returns the most recent message, or nil for an empty session.
func (s *ChatSession) LastMessage() *ChatMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// RecentMessages returns the last n messages, or all of them when n <= 0 or
// the history is shorter.
func (s *ChatSession) RecentMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

const previewLen = 50

// Preview derives the sidebar label from the first user message: its first 50
// characters with an ellipsis when truncated, or "New chat" when no user
// message exists yet.
func (s *ChatSession) Preview() string {
	for _, m := range s.Messages {
		if m.Role != RoleUser {
			continue
		}
		content := []rune(strings.TrimSpace(m.Content))
		if len(content) > previewLen {
			return string(content[:previewLen]) + "..."
		}
		return string(content)
	}
	return "New chat"
}

// SessionSummary is the listing shape used by the sidebar and the sessions API.
type SessionSummary struct {
	SessionID     string        `json:"sessionId"`
	Preview       string        `json:"preview"`
	MessageCount  int           `json:"messageCount"`
	LastMessage   *ChatMessage  `json:"lastMessage,omitempty"`
	SelectedModel string        `json:"selectedModel"`
	Messages      []ChatMessage `json:"messages"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Summary projects the session into its listing shape.
func (s *ChatSession) Summary() SessionSummary {
	return SessionSummary{
		SessionID:     s.ID,
		Preview:       s.Preview(),
		MessageCount:  len(s.Messages),
		LastMessage:   s.LastMessage(),
		SelectedModel: s.SelectedModel,
		Messages:      s.Messages,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
