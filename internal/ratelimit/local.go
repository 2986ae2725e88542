package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process token bucket per key. It only sees the
// traffic of this instance.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	limit    int
	burst    int
	every    rate.Limit
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(limit int, window time.Duration, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = limit
	}
	return &LocalLimiter{
		limiters: make(map[string]*bucket),
		limit:    limit,
		burst:    burst,
		every:    rate.Limit(float64(limit) / window.Seconds()),
	}
}

func (l *LocalLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (*Result, error) {
	now := time.Now()
	limiter := l.get(key, now)
	allowed := limiter.AllowN(now, 1)

	tokens := limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	resetAt := now
	if !allowed && l.every > 0 {
		resetAt = now.Add(time.Duration((1 - tokens) / float64(l.every) * float64(time.Second)))
	}
	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     l.burst,
		ResetAt:   resetAt,
		Backend:   BackendLocal,
	}, nil
}

// Len reports how many keys hold a bucket.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// EvictIdle drops the buckets of keys not seen since cutoff and reports how
// many were removed.
func (l *LocalLimiter) EvictIdle(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			evicted++
		}
	}
	return evicted
}

// refillTime is how long an unused bucket takes to fill up again. A bucket
// idle for longer is indistinguishable from a new one.
func (l *LocalLimiter) refillTime() time.Duration {
	if l.every <= 0 {
		return 0
	}
	return time.Duration(float64(l.burst) / float64(l.every) * float64(time.Second))
}

// StartCleanup evicts refilled idle buckets every interval until ctx is done.
func (l *LocalLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	idle := l.refillTime()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.EvictIdle(now.Add(-idle))
			}
		}
	}()
}
