package cache

import (
	"context"
	"errors"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scoreCacheName = "user_score"

// ScoreCache memoizes derived identity scores in Redis.
// It is never a source of truth: callers recompute on a miss and
// invalidate whenever the underlying progress changes.
type ScoreCache struct {
	rc  *RedisClient
	ttl time.Duration
}

// NewScoreCache creates a score cache backed by rc
func NewScoreCache(rc *RedisClient, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ScoreCache{rc: rc, ttl: ttl}
}

// ScoreKey returns the redis key holding a user's total score
func ScoreKey(userID string) string {
	return "arb:user_score:" + userID
}

// Get returns the cached score. A Redis failure is logged and treated as a miss.
func (s *ScoreCache) Get(ctx context.Context, userID string) (int, bool) {
	v, err := s.rc.GetInt(ctx, ScoreKey(userID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Score cache read failed", logger.WithUserID(userID), zap.Error(err))
		}
		metrics.Get().CacheMissesTotal.WithLabelValues(scoreCacheName).Inc()
		return 0, false
	}
	metrics.Get().CacheHitsTotal.WithLabelValues(scoreCacheName).Inc()
	return int(v), true
}

// Set stores a freshly computed score
func (s *ScoreCache) Set(ctx context.Context, userID string, score int) {
	if err := s.rc.SetEx(ctx, ScoreKey(userID), score, s.ttl); err != nil {
		logger.Log.Warn("Score cache write failed", logger.WithUserID(userID), zap.Error(err))
	}
}

// Invalidate drops a user's cached score
func (s *ScoreCache) Invalidate(ctx context.Context, userID string) {
	if err := s.rc.Del(ctx, ScoreKey(userID)); err != nil {
		logger.Log.Warn("Score cache invalidation failed", logger.WithUserID(userID), zap.Error(err))
	}
}
