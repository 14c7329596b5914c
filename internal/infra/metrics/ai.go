package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ollama-web-chat/internal/domain"
)

func init() {
	register(
		completionLatency,
		completionsTotal,
	)
}

var (
	completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollama_completion_latency_seconds",
			Help:    "Completion call latency distribution per model/outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30, 60},
		},
		[]string{"model", "outcome"},
	)

	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_completions_total",
			Help: "Completion calls by model and classified outcome.",
		},
		[]string{"model", "outcome"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveCompletion records one completion call.
func ObserveCompletion(model, outcome string, elapsed time.Duration) {
	completionLatency.WithLabelValues(norm(model), outcome).Observe(elapsed.Seconds())
	completionsTotal.WithLabelValues(norm(model), outcome).Inc()
}

// OutcomeFor maps a classified completion error to its metric label.
func OutcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAIUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrModelNotFound):
		return "model_not_found"
	case errors.Is(err, domain.ErrRequestTimeout):
		return "timeout"
	default:
		return "error"
	}
}
