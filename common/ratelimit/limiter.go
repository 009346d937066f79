// Package ratelimit bounds run starts per org with a fixed-window
// counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/redis"
)

// Limiter enforces per-org run limits
type Limiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	log    *logger.Logger
}

// NewLimiter creates a limiter allowing `limit` runs per org per window
func NewLimiter(client *redis.Client, limit int, window time.Duration, log *logger.Logger) *Limiter {
	return &Limiter{
		redis:  client,
		limit:  int64(limit),
		window: window,
		log:    log,
	}
}

// Allow counts one run start for the org and reports whether it fits
// inside the current window
func (l *Limiter) Allow(ctx context.Context, org string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rate_limit:org:%s", org)
	count, err := l.redis.IncrementWindow(ctx, key, l.window)
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if count > l.limit {
		l.log.Warn("rate limit exceeded", "org", org, "count", count, "limit", l.limit)
		return false, nil
	}
	return true, nil
}
