package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

// DistributedRateLimiter implements rate limiting over Redis so limits
// hold across multiple instances
type DistributedRateLimiter struct {
	redis  *postgres.RedisClient
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *postgres.RedisClient, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "haven:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed. Redis failures fail open, a
// cache outage must not take the API down with it.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Incr(ctx, redisKey)
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Delete(ctx, fmt.Sprintf("%s:%s", rl.prefix, key))
}

// DistributedRateLimitMiddleware applies Redis-backed per-client
// limits with the same keying as the in-memory middleware
type DistributedRateLimitMiddleware struct {
	userLimiter *DistributedRateLimiter
	anonLimiter *DistributedRateLimiter
	logger      *observability.Logger
}

// NewDistributedRateLimitMiddleware creates Redis-backed rate limiting
// middleware
func NewDistributedRateLimitMiddleware(redisClient *postgres.RedisClient, logger *observability.Logger) *DistributedRateLimitMiddleware {
	return &DistributedRateLimitMiddleware{
		userLimiter: NewDistributedRateLimiter(redisClient, PerUserRateLimitConfig(), "haven:ratelimit:user"),
		anonLimiter: NewDistributedRateLimiter(redisClient, DefaultRateLimitConfig(), "haven:ratelimit:anon"),
		logger:      logger,
	}
}

// Handler wraps an HTTP handler with distributed rate limiting
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limiter, key := m.anonLimiter, "ip:"+clientIP(r)
		if userID := contextkeys.UserID(ctx); userID != "" {
			limiter, key = m.userLimiter, "user:"+userID
		}

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			m.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		}
		if !allowed {
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
