package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ollama-web-chat/internal/config"
	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/ports/adapter"
)

func newTestAdapter(t *testing.T, handler http.Handler) (*OllamaAdapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zerolog.Nop()
	a := NewOllamaAdapter(config.AIConfig{
		BaseURL:        srv.URL,
		DefaultModel:   "llama3.2",
		RequestTimeout: 2 * time.Second,
		HealthTimeout:  time.Second,
	}, &logger)
	return a, srv
}

func tagsHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := make([]adapter.ModelInfo, 0, len(names))
		for _, n := range names {
			models = append(models, adapter.ModelInfo{Name: n})
		}
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	}
}

func TestListModels(t *testing.T) {
	t.Parallel()

	t.Run("returns directory contents", func(t *testing.T) {
		a, _ := newTestAdapter(t, tagsHandler("llama3.2:latest", "mistral:7b"))
		models := a.ListModels(context.Background())
		if len(models) != 2 {
			t.Fatalf("expected 2 models, got %d", len(models))
		}
		if models[0].Name != "llama3.2:latest" {
			t.Fatalf("unexpected first model: %q", models[0].Name)
		}
	})

	t.Run("empty on server error", func(t *testing.T) {
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		if models := a.ListModels(context.Background()); len(models) != 0 {
			t.Fatalf("expected empty directory, got %v", models)
		}
	})

	t.Run("empty when unreachable", func(t *testing.T) {
		a, srv := newTestAdapter(t, tagsHandler())
		srv.Close()
		if models := a.ListModels(context.Background()); len(models) != 0 {
			t.Fatalf("expected empty directory, got %v", models)
		}
	})
}

func TestSelectBestModel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		available []string
		preferred string
		want      string
	}{
		{"preferred exact", []string{"mistral:7b", "llama3.2:latest"}, "llama3.2", "llama3.2:latest"},
		{"family fallback order", []string{"mistral:7b", "llama3.2:latest"}, "", "llama3.2:latest"},
		{"case insensitive", []string{"Mistral:7B"}, "mistral", "Mistral:7B"},
		{"nothing preferred matches", []string{"foo", "bar"}, "llama3.2", "foo"},
		{"substring match", []string{"custom-llama3-finetune"}, "", "custom-llama3-finetune"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newTestAdapter(t, tagsHandler(tc.available...))
			got, err := a.SelectBestModel(context.Background(), tc.preferred)
			if err != nil {
				t.Fatalf("SelectBestModel: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	t.Run("empty directory errors", func(t *testing.T) {
		a, _ := newTestAdapter(t, tagsHandler())
		_, err := a.SelectBestModel(context.Background(), "llama3.2")
		if !errors.Is(err, domain.ErrNoModelsAvailable) {
			t.Fatalf("expected ErrNoModelsAvailable, got %v", err)
		}
	})
}

func TestComplete(t *testing.T) {
	t.Parallel()

	t.Run("renders prompt and returns response", func(t *testing.T) {
		var gotReq generateRequest
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/generate" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
			json.NewEncoder(w).Encode(generateResponse{Response: "the answer", Done: true})
		}))

		history := []adapter.Message{
			{Role: "user", Content: "what is Go?"},
			{Role: "assistant", Content: "a language"},
			{Role: "user", Content: "more detail"},
		}
		got, err := a.Complete(context.Background(), history, "llama3.2", "Be terse.")
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got != "the answer" {
			t.Fatalf("expected response text, got %q", got)
		}
		if gotReq.Stream {
			t.Fatal("streaming must be disabled")
		}
		if gotReq.Model != "llama3.2" {
			t.Fatalf("unexpected model %q", gotReq.Model)
		}

		want := "Be terse.\n\nUser: what is Go?\n\nAssistant: a language\n\nUser: more detail\n\nAssistant:"
		if gotReq.Prompt != want {
			t.Fatalf("prompt mismatch:\n got %q\nwant %q", gotReq.Prompt, want)
		}
	})

	t.Run("404 classifies as model not found", func(t *testing.T) {
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/tags" {
				tagsHandler("mistral:7b")(w, r)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		_, err := a.Complete(context.Background(), nil, "ghostmodel", "")
		if !errors.Is(err, domain.ErrModelNotFound) {
			t.Fatalf("expected ErrModelNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "mistral:7b") {
			t.Fatalf("error should list available models, got %v", err)
		}
	})

	t.Run("unreachable classifies as unavailable", func(t *testing.T) {
		a, srv := newTestAdapter(t, tagsHandler())
		srv.Close()
		_, err := a.Complete(context.Background(), nil, "llama3.2", "")
		if !errors.Is(err, domain.ErrAIUnavailable) {
			t.Fatalf("expected ErrAIUnavailable, got %v", err)
		}
	})

	t.Run("slow server classifies as timeout", func(t *testing.T) {
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(3 * time.Second)
		}))
		_, err := a.Complete(context.Background(), nil, "llama3.2", "")
		if !errors.Is(err, domain.ErrRequestTimeout) {
			t.Fatalf("expected ErrRequestTimeout, got %v", err)
		}
	})

	t.Run("500 classifies as call failed", func(t *testing.T) {
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		_, err := a.Complete(context.Background(), nil, "llama3.2", "")
		if !errors.Is(err, domain.ErrAICallFailed) {
			t.Fatalf("expected ErrAICallFailed, got %v", err)
		}
	})

	t.Run("empty model uses default", func(t *testing.T) {
		var gotReq generateRequest
		a, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
		}))
		if _, err := a.Complete(context.Background(), nil, "", ""); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if gotReq.Model != "llama3.2" {
			t.Fatalf("expected configured default, got %q", gotReq.Model)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	a, srv := newTestAdapter(t, tagsHandler("llama3.2"))
	if got := a.HealthCheck(context.Background()); got != adapter.StatusConnected {
		t.Fatalf("expected connected, got %q", got)
	}
	srv.Close()
	if got := a.HealthCheck(context.Background()); got != adapter.StatusDisconnected {
		t.Fatalf("expected disconnected, got %q", got)
	}
}

func TestBuildPromptWithoutSystem(t *testing.T) {
	t.Parallel()

	got := buildPrompt([]adapter.Message{{Role: "user", Content: "hi"}}, "")
	if got != "User: hi\n\nAssistant:" {
		t.Fatalf("unexpected prompt %q", got)
	}
}
