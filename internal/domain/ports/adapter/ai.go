package adapter

import (
	"context"
	"time"
)

// ModelInfo describes one model reported by the AI runtime's directory.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Message is one conversation turn handed to the runtime.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Health states reported by HealthCheck.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// AIAdapter is the port for the local LLM runtime (model directory plus
// blocking completion).
type AIAdapter interface {
	// ListModels queries the live model directory. It is best-effort: any
	// failure yields an empty slice, never an error — "no models" is a
	// legitimate degraded state.
	ListModels(ctx context.Context) []ModelInfo

	// SelectBestModel picks a model from the directory, preferring the given
	// default, then a fixed list of common model families (case-insensitive
	// substring match), then the first directory entry in listing order.
	// Returns domain.ErrNoModelsAvailable when the directory is empty.
	SelectBestModel(ctx context.Context, preferred string) (string, error)

	// Complete formats history plus the optional system prompt into a single
	// prompt and issues one blocking generation request. Failures are
	// classified into the domain AI error kinds.
	Complete(ctx context.Context, history []Message, model, systemPrompt string) (string, error)

	// HealthCheck probes runtime reachability; it reports StatusConnected or
	// StatusDisconnected and never errors.
	HealthCheck(ctx context.Context) string
}
