package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket for a request; defaults to client IP
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig returns the general API limit
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   120,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
	}
}

// AuthRateLimitConfig returns stricter limits for auth endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
	}
}

// UploadRateLimitConfig returns limits for video uploads
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   20,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
	}
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on token availability
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// GetRetryAfter returns seconds to wait before next request
func (tb *TokenBucket) GetRetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens < 1 {
		timeToToken := (1 - tb.tokens) / tb.refillRate
		return int(timeToToken) + 1
	}
	return 0
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.Mutex
}

// NewRateLimiter creates a new in-memory rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = clientIPKey
	}
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}

	go rl.cleanupRoutine(time.NewTicker(config.Window + time.Minute))

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		bucket := rl.bucket(key)
		if !bucket.Allow() {
			retryAfter := bucket.GetRetryAfter()
			RecordRateLimitExceeded(c.FullPath())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":        "RATE_LIMITED",
				"message":     "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

// cleanupRoutine drops buckets idle for longer than a full window; they would be full anyway
func (rl *RateLimiter) cleanupRoutine(ticker *time.Ticker) {
	for range ticker.C {
		cutoff := time.Now().Add(-rl.config.Window)
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			if bucket.idleSince().Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
