// Package ratelimit bounds the call rate for a caller+action pair using a
// sliding window over a Redis sorted set.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// The whole check runs as one atomic script: prune entries that fell out of
// the window, record the current call, count, refresh the TTL. The current
// call is counted before the threshold check, so at most maxRequests calls
// (inclusive of the one being evaluated) are admitted per rolling window.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, member)
local count = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, window)
return count`

// Client is the subset of redis.Client the limiter needs.
type Client interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Limiter struct {
	rdb Client
	now func() time.Time
}

func NewLimiter(rdb Client) *Limiter {
	return &Limiter{
		rdb: rdb,
		now: time.Now,
	}
}

// Allow records the current call under key and reports whether the rolling
// window still has budget. Idle keys self-expire after one window.
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	nowMs := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.New().String()[:8])

	res, err := l.rdb.Eval(ctx, slidingWindowScript, []string{keyPrefix + key},
		nowMs, window.Milliseconds(), member).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check %s: %w", key, err)
	}

	count, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("rate limit check %s: unexpected reply %T", key, res)
	}

	return count <= int64(maxRequests), nil
}
