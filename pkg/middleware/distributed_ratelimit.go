package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements fixed-window rate limiting in Redis
// so limits are shared across instances
type DistributedRateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = SignInRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow records one request for key. The window starts with the first request.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := rl.key(key)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}

	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		// New key, or a key that lost its expiry
		if err := rl.redis.PExpire(ctx, redisKey, rl.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis error: %w", err)
		}
		remainingTTL = rl.config.Window
	}

	count := int(incr.Val())
	return Decision{
		Allowed:   count <= rl.config.Requests,
		Limit:     rl.config.Requests,
		Remaining: max(rl.config.Requests-count, 0),
		ResetAt:   time.Now().Add(remainingTTL),
	}, nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}
