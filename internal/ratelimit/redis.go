package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, then admits the request when fewer than
// limit requests remain in it. Returns {allowed, remaining, reset_at_ms}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':seq')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local ttl = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, ttl)
		redis.call('EXPIRE', key .. ':seq', ttl)
		return {1, limit - current - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_at = 0
	if oldest and #oldest >= 2 then
		reset_at = tonumber(oldest[2]) + window_ms
	end
	return {0, 0, reset_at}
`)

// RedisLimiter is a sliding-window limiter shared by every API instance.
type RedisLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, keyPrefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, keyPrefix: keyPrefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()

	values, err := slidingWindow.Run(ctx, l.client, []string{l.keyPrefix + key},
		nowMs, nowMs-windowMs, l.limit, windowMs).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit script: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected rate limit reply length %d", len(values))
	}

	resetAt := now.Add(l.window)
	if values[2] > 0 {
		resetAt = time.UnixMilli(values[2])
	}
	return &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		Limit:     l.limit,
		ResetAt:   resetAt,
		Backend:   BackendRedis,
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.keyPrefix+key, l.keyPrefix+key+":seq").Err()
}
