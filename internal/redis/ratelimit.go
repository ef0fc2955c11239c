package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window for the limit
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a sliding window limiter over Redis sorted sets
type RateLimiter struct {
	client *Client
	logger *zap.Logger
	config RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client *Client, logger *zap.Logger, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Allow counts one request against key
func (r *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	now := r.now()
	windowStart := now.Add(-r.config.Window)
	resetAt := now.Add(r.config.Window)
	redisKey := "ratelimit:" + key

	pipe := r.client.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	count := int(countCmd.Val())
	if count >= r.config.Limit {
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int("current", count),
			zap.Int("limit", r.config.Limit),
		)
		return &RateLimitResult{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	stamp := now.UnixNano()
	pipe = r.client.rdb.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(stamp), Member: strconv.FormatInt(stamp, 10) + "-" + strconv.Itoa(count)})
	pipe.Expire(ctx, redisKey, r.config.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis zadd failed: %w", err)
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: r.config.Limit - count - 1,
		ResetAt:   resetAt,
	}, nil
}
