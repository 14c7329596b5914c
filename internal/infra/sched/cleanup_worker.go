// File: internal/infra/sched/cleanup_worker.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ollama-web-chat/internal/infra/metrics"
)

// Cleaner is the minimal interface the worker needs from the session service.
type Cleaner interface {
	CleanupOldSessions(ctx context.Context, daysOld int) (int64, error)
}

// CleanupWorker periodically removes sessions untouched for the configured
// number of days. The same sweep is also exposed as an operator CLI
// (cmd/cleanup); this worker just automates it when an interval is set.
type CleanupWorker struct {
	interval time.Duration
	daysOld  int
	cleaner  Cleaner
	log      *zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCleanupWorker(interval time.Duration, daysOld int, cleaner Cleaner, log *zerolog.Logger) *CleanupWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupWorker{
		interval: interval,
		daysOld:  daysOld,
		cleaner:  cleaner,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (w *CleanupWorker) Start(parentCtx context.Context) {
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel
	go w.loop(ctx)
}

func (w *CleanupWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer func() {
		ticker.Stop()
		close(w.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := w.cleaner.CleanupOldSessions(runCtx, w.daysOld)
			cancel()
			if err != nil {
				w.log.Error().Err(err).Msg("session cleanup sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddSessionsCleaned(n)
				w.log.Info().Int64("removed", n).Int("days_old", w.daysOld).Msg("session cleanup sweep")
			}
		}
	}
}

// Stop cancels the loop and waits for it to finish.
func (w *CleanupWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}
