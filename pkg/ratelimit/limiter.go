// Package ratelimit controls the pace of outbound API requests so the
// connector stays within the exchange's per-window request budget.
//
// It wraps Uber's token bucket limiter behind a small interface so that the
// HTTP client and the WebSocket connector can share one rate-limiting
// abstraction, and tests can substitute a no-op limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a rate limit expressed as a number of operations per interval.
// A Rate of {Limit: 100, Interval: time.Minute} allows 100 operations per
// minute.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// RateLimiter paces operations according to a configured Rate.
type RateLimiter interface {
	// Wait blocks until an operation is permitted or the context is
	// cancelled. It must be called before each rate-limited operation.
	Wait(ctx context.Context) error

	// SetLimit replaces the rate configuration at runtime. It returns an
	// error for non-positive limits or intervals.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter on top of go.uber.org/ratelimit's token
// bucket.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a rate limiter for the given Rate. The rate
// is converted to operations per second for the underlying token bucket, so
// {120, time.Minute} becomes 2 ops/second. Rates below 1 op/second clamp to
// 1, the bucket's minimum.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &uberLimiter{
		limiter: ratelimit.New(opsPerSecond(rate)),
		rate:    rate,
	}
}

func opsPerSecond(rate Rate) int {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return 1
	}
	rps := int(float64(rate.Limit) / rate.Interval.Seconds())
	if rps < 1 {
		return 1
	}
	return rps
}

func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.limiter = ratelimit.New(opsPerSecond(rate))
	l.rate = rate
	return nil
}
