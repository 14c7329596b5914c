// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ollama-web-chat/internal/domain"
)

// RedisLocker is the per-session generation lock: SetNX with a TTL bounds how
// long a crashed task can keep a session locked, and the Lua unlock only
// releases a lock still holding our token.
type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

// TryLock attempts the lock without waiting for a holder to release it: a
// held lock means another completion task is in flight and the caller is
// rejected right away. Transient redis errors are retried a few times.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < 3; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if ok {
			return token, nil
		}
		return "", domain.ErrGenerationInProgress
	}
	return "", lastErr
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
