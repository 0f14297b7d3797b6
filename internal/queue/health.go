package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/arbmuseum/arb/backend/internal/models"
)

// Snapshot keys
const (
	StatQueueDepth    = "queue_depth"
	StatQueueCapacity = "queue_capacity"
	StatFailedJobs    = "failed_jobs"
	StatUnsentBacklog = "unsent_backlog"
)

// StaleAfter is how long a bound code may wait for delivery before it
// counts toward the unsent backlog
const StaleAfter = 10 * time.Minute

// Snapshot reports delivery health for the alert evaluator. Failed jobs
// count while their results are retained.
func (q *PromoQueue) Snapshot(ctx context.Context) (map[string]float64, error) {
	q.resultsMux.RLock()
	failed := 0
	for _, job := range q.results {
		if job.Status == StatusFailed {
			failed++
		}
	}
	q.resultsMux.RUnlock()

	var backlog int64
	err := q.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("sent_at IS NULL AND used_at IS NULL AND email IS NOT NULL AND email <> ''").
		Where("issued_at < ?", time.Now().UTC().Add(-StaleAfter)).
		Count(&backlog).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unsent promo codes: %w", err)
	}

	return map[string]float64{
		StatQueueDepth:    float64(len(q.jobs)),
		StatQueueCapacity: float64(cap(q.jobs)),
		StatFailedJobs:    float64(failed),
		StatUnsentBacklog: float64(backlog),
	}, nil
}
