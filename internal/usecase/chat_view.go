// File: internal/usecase/chat_view.go
package usecase

import (
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/adapter"
)

// ChatView is the exact data shape the presentation layer consumes. The
// orchestrator fills everything except Theme, which the web layer reads from
// the client's cookie.
type ChatView struct {
	SessionID       string
	Messages        []model.ChatMessage
	Error           string
	IsLoading       bool
	PendingMessage  string
	Theme           string
	Sessions        []model.SessionSummary
	AvailableModels []adapter.ModelInfo
	SelectedModel   string
	SystemPrompt    string

	// ExpectedCount is the message count a polling client should hand back on
	// its next /check-response request.
	ExpectedCount    int
	ResponseComplete bool
}
