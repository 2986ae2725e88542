package ratelimit

import (
	"context"
	"errors"
	"time"

	"tasklist/backend/internal/logger"
)

const (
	BackendRedis = "redis"
	BackendLocal = "local"
)

type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
	Backend   string
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// FallbackLimiter consults the primary limiter through a circuit breaker and
// answers from the fallback whenever the primary fails or the breaker is open.
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	breaker  *CircuitBreaker
	log      *logger.Logger
}

func NewFallbackLimiter(primary, fallback Limiter, breaker *CircuitBreaker, log *logger.Logger) *FallbackLimiter {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FallbackLimiter{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		log:      log.WithComponent("ratelimit"),
	}
}

func (l *FallbackLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	var result *Result
	err := l.breaker.Execute(func() error {
		r, err := l.primary.Allow(ctx, key)
		result = r
		return err
	})
	if err == nil {
		return result, nil
	}

	if !errors.Is(err, ErrBreakerOpen) {
		l.log.Warnw("Primary rate limiter failed, using fallback", "error", err, "breaker", l.breaker.State().String())
	}
	return l.fallback.Allow(ctx, key)
}

func (l *FallbackLimiter) Breaker() *CircuitBreaker {
	return l.breaker
}
