package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ollama-web-chat/internal/config"
	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/ports/adapter"
	"ollama-web-chat/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIAdapter = (*OllamaAdapter)(nil)

// Model families tried, in order, when the configured default matches nothing
// in the directory.
var fallbackModels = []string{
	"llama3.2", "llama3.1", "llama3", "llama2",
	"mistral", "gemma", "qwen", "phi",
}

// OllamaAdapter implements adapter.AIAdapter against Ollama's HTTP API
// (/api/tags for the model directory, /api/generate for completions).
type OllamaAdapter struct {
	baseURL      string
	defaultModel string
	client       *http.Client
	healthClient *http.Client
	log          *zerolog.Logger
}

func NewOllamaAdapter(cfg config.AIConfig, log *zerolog.Logger) *OllamaAdapter {
	return &OllamaAdapter{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.RequestTimeout},
		healthClient: &http.Client{Timeout: cfg.HealthTimeout},
		log:          log,
	}
}

type tagsResponse struct {
	Models []adapter.ModelInfo `json:"models"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ListModels is best-effort: any failure yields an empty directory, which
// callers treat as a degraded state rather than an error.
func (o *OllamaAdapter) ListModels(ctx context.Context) []adapter.ModelInfo {
	models, err := o.listTags(ctx, o.healthClient)
	if err != nil {
		o.log.Debug().Err(err).Msg("list models")
		return nil
	}
	return models
}

func (o *OllamaAdapter) listTags(ctx context.Context, client *http.Client) ([]adapter.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags: http %d", resp.StatusCode)
	}
	var payload tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Models, nil
}

// SelectBestModel builds the preference order (configured default first, then
// the fixed family list), does case-insensitive substring matching against the
// directory, and falls back to the first listed model when nothing preferred
// matches.
func (o *OllamaAdapter) SelectBestModel(ctx context.Context, preferred string) (string, error) {
	models := o.ListModels(ctx)
	if len(models) == 0 {
		return "", fmt.Errorf("%w: pull a model first (for example: ollama pull %s)",
			domain.ErrNoModelsAvailable, o.defaultModel)
	}

	prefs := make([]string, 0, len(fallbackModels)+1)
	if preferred != "" {
		prefs = append(prefs, preferred)
	}
	prefs = append(prefs, fallbackModels...)

	for _, want := range prefs {
		for _, m := range models {
			if strings.Contains(strings.ToLower(m.Name), strings.ToLower(want)) {
				return m.Name, nil
			}
		}
	}
	// Directory order, not alphabetical.
	return models[0].Name, nil
}

// Complete renders the history into a single prompt and issues one blocking
// generation request. Every failure is classified into a domain error kind.
func (o *OllamaAdapter) Complete(ctx context.Context, history []adapter.Message, model, systemPrompt string) (string, error) {
	if model == "" {
		model = o.defaultModel
	}
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: buildPrompt(history, systemPrompt),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAICallFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAICallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		cerr := o.classifyTransport(err)
		metrics.ObserveCompletion(model, metrics.OutcomeFor(cerr), time.Since(start))
		return "", cerr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		cerr := o.modelNotFound(ctx, model)
		metrics.ObserveCompletion(model, metrics.OutcomeFor(cerr), time.Since(start))
		return "", cerr
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cerr := fmt.Errorf("%w: http %d: %s", domain.ErrAICallFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
		metrics.ObserveCompletion(model, metrics.OutcomeFor(cerr), time.Since(start))
		return "", cerr
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		cerr := fmt.Errorf("%w: decode response: %v", domain.ErrAICallFailed, err)
		metrics.ObserveCompletion(model, metrics.OutcomeFor(cerr), time.Since(start))
		return "", cerr
	}

	metrics.ObserveCompletion(model, "success", time.Since(start))
	return payload.Response, nil
}

// HealthCheck probes the model-listing endpoint; any failure, including a
// timeout, maps to disconnected. It never errors.
func (o *OllamaAdapter) HealthCheck(ctx context.Context) string {
	if _, err := o.listTags(ctx, o.healthClient); err != nil {
		return adapter.StatusDisconnected
	}
	return adapter.StatusConnected
}

// classifyTransport maps a raw transport failure onto the closed set of
// domain error kinds, at the point the HTTP call failed.
func (o *OllamaAdapter) classifyTransport(err error) error {
	var nerr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: cannot connect to %s (is Ollama running?)", domain.ErrAIUnavailable, o.baseURL)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &nerr) && nerr.Timeout():
		return fmt.Errorf("%w: %s did not answer within %s", domain.ErrRequestTimeout, o.baseURL, o.client.Timeout)
	default:
		return fmt.Errorf("%w: %v", domain.ErrAICallFailed, err)
	}
}

// modelNotFound enriches the 404 classification with the models currently
// available, when a follow-up listing succeeds.
func (o *OllamaAdapter) modelNotFound(ctx context.Context, model string) error {
	if models, err := o.listTags(ctx, o.healthClient); err == nil && len(models) > 0 {
		names := make([]string, 0, len(models))
		for _, m := range models {
			names = append(names, m.Name)
		}
		return fmt.Errorf("%w: %q (available: %s)", domain.ErrModelNotFound, model, strings.Join(names, ", "))
	}
	return fmt.Errorf("%w: %q", domain.ErrModelNotFound, model)
}

// buildPrompt renders each turn as "User: ..." / "Assistant: ..." joined by
// blank lines with a trailing "Assistant:" cue, optionally prefixed by the
// system prompt.
func buildPrompt(history []adapter.Message, systemPrompt string) string {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	for _, m := range history {
		if m.Role == "assistant" {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}
