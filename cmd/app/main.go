// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ollama-web-chat/internal/config"
	ai "ollama-web-chat/internal/infra/adapters/ai"
	pg "ollama-web-chat/internal/infra/db/postgres"
	"ollama-web-chat/internal/infra/logging"
	"ollama-web-chat/internal/infra/metrics"
	red "ollama-web-chat/internal/infra/redis"
	"ollama-web-chat/internal/infra/sched"
	"ollama-web-chat/internal/infra/web"
	"ollama-web-chat/internal/infra/worker"
	"ollama-web-chat/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logging and debug level")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect")
	}
	defer redisClient.Close()

	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	sessionCache := red.NewSessionCache(redisClient, cfg.Chat.CacheRetention)

	// ---- Storage ----
	sessionRepo := pg.NewChatSessionRepo(pool, sessionCache)
	if err := sessionRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	// ---- Background workers ----
	workerPool := worker.NewPool(cfg.Worker.Count, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	// ---- AI adapter ----
	ollama := ai.NewOllamaAdapter(cfg.AI, logger)

	// ---- Use cases ----
	sessionUC := usecase.NewSessionUseCase(sessionRepo, cfg.Chat, cfg.AI.DefaultModel)
	flowUC := usecase.NewChatFlowUseCase(sessionUC, ollama, locker, workerPool,
		cfg.Chat.MaxHistoryMessages, cfg.AI.RequestTimeout, logger)

	// ---- Periodic cleanup ----
	if cfg.Chat.CleanupInterval > 0 {
		sweeper := sched.NewCleanupWorker(cfg.Chat.CleanupInterval, cfg.Chat.CleanupDays, sessionUC, logger)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// ---- HTTP server ----
	srv := web.NewServer(flowUC, sessionUC, ollama, sessionRepo, rateLimiter, cfg, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("stopped")
}
