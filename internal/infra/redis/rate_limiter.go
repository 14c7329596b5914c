// File: internal/infra/redis/rate_limiter.go
package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter: INCR the window key, set its expiry
// on first hit, reject once the count passes the limit. Coarse by design; a
// page-per-request UI needs a ceiling, not fairness.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether this request fits in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		// First hit opens the window.
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// ClientKey builds the rate-limit key for one client address.
func ClientKey(remoteAddr string) string {
	return "rate_limit:" + remoteAddr
}
