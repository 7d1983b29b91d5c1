package abuse

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

// bucketStore is a token bucket with continuous refill.
type bucketStore interface {
	Take(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

type redisBucket struct {
	client *redis.Client
	script *redis.Script
}

func newRedisBucket(client *redis.Client) *redisBucket {
	return &redisBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (b *redisBucket) Take(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if key == "" {
		return nil, errors.New("rate limit key is empty")
	}
	if rate <= 0 || burst <= 0 {
		return nil, errors.New("rate limit budget must be positive")
	}

	ttl := bucketTTL(rate, burst)
	res, err := b.script.Run(ctx, b.client, []string{key}, rate, burst, int64(ttl/time.Millisecond)).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed, _ := res[0].(int64)
	tokens := parseFloat(res[1])

	result := &Result{
		Allowed:   allowed == 1,
		Remaining: int(tokens),
	}
	if !result.Allowed {
		needed := 1.0 - tokens
		if needed > 0 {
			result.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return result, nil
}

func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
