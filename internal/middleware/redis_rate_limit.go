package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arbmuseum/arb/backend/internal/cache"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared across instances through Redis.
// With no Redis client it falls back to the in-process token bucket limiter.
// When Redis errors mid-flight the request is let through: a visitor must never
// lose a view because the limiter is down.
func RedisRateLimitMiddleware(rc *cache.RedisClient, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if window < time.Second {
		window = time.Second
	}
	if rc == nil {
		logger.Log.Info("Redis unavailable, using in-memory rate limiter", zap.String("scope", scope))
		return NewRateLimiter(RateLimitConfig{Limit: maxRequests, Window: window})
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("rate_limit:%s:%s:%d", scope, clientIP, bucket)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		count, err := rc.Incr(ctx, key)
		if err != nil {
			logger.Log.Warn("Rate limit check failed, allowing request",
				logger.WithIP(clientIP),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if count == 1 {
			if err := rc.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					logger.WithIP(clientIP),
					zap.Error(err),
				)
			}
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if count > int64(maxRequests) {
			RecordRateLimitExceeded(scope)
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(clientIP),
				zap.String("scope", scope),
				zap.Int64("current_requests", count),
			)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":        "RATE_LIMITED",
				"message":     "rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(maxRequests)-count, 10))
		c.Next()
	}
}
