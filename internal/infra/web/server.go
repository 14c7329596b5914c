// File: internal/infra/web/server.go
package web

import (
	"context"
	"html/template"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ollama-web-chat/internal/config"
	"ollama-web-chat/internal/domain/ports/adapter"
	"ollama-web-chat/internal/infra/markdown"
	"ollama-web-chat/internal/usecase"
)

// Pinger is what the health endpoint needs from the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limiter is the rate-limit gate in front of every route.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server renders the whole UI: every response is a full page, the client runs
// no scripts, and in-flight AI work is observed by the polling views.
type Server struct {
	flow     usecase.ChatFlowUseCase
	sessions usecase.SessionUseCase
	ai       adapter.AIAdapter
	store    Pinger
	limiter  Limiter
	md       *markdown.Renderer
	cfg      *config.Config
	log      *zerolog.Logger
	tmpl     *template.Template
}

func NewServer(
	flow usecase.ChatFlowUseCase,
	sessions usecase.SessionUseCase,
	ai adapter.AIAdapter,
	store Pinger,
	limiter Limiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	md := markdown.New()
	return &Server{
		flow:     flow,
		sessions: sessions,
		ai:       ai,
		store:    store,
		limiter:  limiter,
		md:       md,
		cfg:      cfg,
		log:      logger,
		tmpl:     parseTemplates(md),
	}
}

// Routes builds the router with the gate middleware in front of the core.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(securityHeaders)
	r.Use(s.refererCheck)
	r.Use(s.rateLimit)

	r.Get("/", s.handleIndex)
	r.Post("/chat", s.handleChat)
	r.Get("/check-response/{sessionID}", s.handleCheckResponse)
	r.Post("/system-prompt", s.handleSystemPrompt)
	r.Post("/model-selection", s.handleModelSelection)
	r.Post("/sessions/{sessionID}/delete", s.handleDeleteSession)

	r.Get("/api/sessions", s.handleAPISessions)
	r.Get("/health", s.handleHealth)
	r.Get("/health/ollama", s.handleHealthOllama)
	r.Method("GET", "/metrics", promhttp.Handler())

	return r
}
