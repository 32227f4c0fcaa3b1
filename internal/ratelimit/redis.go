package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "rl:"

// fixedWindowScript runs the whole decision on the server so concurrent
// callers on one key, from any process, see exact counts.
//
// KEYS[1] bucket key; ARGV now (ms), limit, window (ms).
// Returns {allowed, remaining, resetAtMs}.
var fixedWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local hits = tonumber(redis.call('HGET', KEYS[1], 'hits') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset') or '0')
if hits == 0 or now >= reset then
  reset = now + window
  redis.call('HSET', KEYS[1], 'hits', 1, 'reset', reset)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, limit - 1, reset}
end
if hits >= limit then
  return {0, 0, reset}
end
hits = redis.call('HINCRBY', KEYS[1], 'hits', 1)
return {1, limit - hits, reset}
`)

// RedisLimiter shares windows between replicas. On a Redis failure it
// fails open and returns the error for the caller to log.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	res, err := fixedWindowScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(), limit, window.Milliseconds(),
	).Result()
	if err != nil {
		return Result{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, fmt.Errorf("ratelimit: redis script: %w", err)
	}

	out, err := parseScriptResult(res)
	if err != nil {
		return Result{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, err
	}
	return out, nil
}

func parseScriptResult(res interface{}) (Result, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return Result{}, fmt.Errorf("ratelimit: unexpected script value %v", v)
		}
		nums[i] = n
	}
	return Result{
		Allowed:   nums[0] == 1,
		Remaining: int(nums[1]),
		ResetAt:   time.UnixMilli(nums[2]),
	}, nil
}
