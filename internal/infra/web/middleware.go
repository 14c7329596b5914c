// File: internal/infra/web/middleware.go
package web

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ollama-web-chat/internal/infra/logging"
	"ollama-web-chat/internal/infra/metrics"
	"ollama-web-chat/internal/infra/redis"
)

// securityHeaders sets the static response headers for a no-script UI. The
// CSP forbids script execution entirely; styles stay inline in the templates.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// refererCheck rejects cross-origin form posts. A missing Referer is accepted
// (strict browser privacy settings strip it); a present one must match the
// request host.
func (s *Server) refererCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if ref := r.Header.Get("Referer"); ref != "" {
				u, err := url.Parse(ref)
				if err != nil || u.Host != r.Host {
					s.log.Warn().Str("referer", ref).Str("host", r.Host).Msg("cross-origin post rejected")
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the fixed-window limit per client IP. Limiter errors fail
// open: a redis hiccup must not take the chat down.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		allowed, err := s.limiter.Allow(r.Context(), redis.ClientKey(ip), s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", s.cfg.RateLimit.Window.String())
			http.Error(w, "Too many requests. Please slow down.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveHTTPRequest(r.Method, route, rec.status, elapsed)
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}
