package abuse

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript counts hits in a fixed window. The expiry is armed on
// the first hit only, so the window does not slide.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

// windowStore counts attempts per key within a fixed window.
type windowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, retryAfter time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

type redisWindow struct {
	client *redis.Client
	script *redis.Script
}

func newRedisWindow(client *redis.Client) *redisWindow {
	return &redisWindow{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (w *redisWindow) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if key == "" {
		return 0, 0, errors.New("rate limit key is empty")
	}
	res, err := w.script.Run(ctx, w.client, []string{key}, int64(window/time.Millisecond)).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) < 2 {
		return 0, 0, errors.New("invalid rate limit script response")
	}

	count, _ := res[0].(int64)
	ttlMillis, _ := res[1].(int64)
	retryAfter := window
	if ttlMillis > 0 {
		retryAfter = time.Duration(ttlMillis) * time.Millisecond
	}
	return count, retryAfter, nil
}

func (w *redisWindow) Reset(ctx context.Context, key string) error {
	return w.client.Del(ctx, key).Err()
}
