// File: cmd/cleanup/main.go
//
// One-shot operator tool: deletes chat sessions older than the retention
// window and exits. The server runs the same sweep on a timer when
// chat.cleanup_interval is set; this binary exists for cron and manual runs.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ollama-web-chat/internal/config"
	pg "ollama-web-chat/internal/infra/db/postgres"
	"ollama-web-chat/internal/infra/logging"
	"ollama-web-chat/internal/infra/metrics"
	"ollama-web-chat/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	days := flag.Int("days", 0, "retention in days (0 uses chat.cleanup_days)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)
	metrics.MustRegister()

	daysOld := cfg.Chat.CleanupDays
	if *days > 0 {
		daysOld = *days
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()

	repo := pg.NewChatSessionRepo(pool, nil)
	sessions := usecase.NewSessionUseCase(repo, cfg.Chat, cfg.AI.DefaultModel)

	deleted, err := sessions.CleanupOldSessions(ctx, daysOld)
	if err != nil {
		logger.Fatal().Err(err).Int("days_old", daysOld).Msg("cleanup failed")
	}
	metrics.AddSessionsCleaned(deleted)
	logger.Info().Int64("deleted", deleted).Int("days_old", daysOld).Msg("cleanup complete")
}
