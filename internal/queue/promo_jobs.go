package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/arbmuseum/arb/backend/internal/email"
	"github.com/arbmuseum/arb/backend/internal/events"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Job statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// PromoJob is one promo code delivery
type PromoJob struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// Options configures a PromoQueue
type Options struct {
	Workers    int
	MaxRetries int
	BaseDelay  time.Duration
	Buffer     int
	ResultTTL  time.Duration
}

// inflightCode tracks the job currently responsible for a code.
// again asks for one more pass once that job finishes.
type inflightCode struct {
	jobID string
	again bool
}

// PromoQueue delivers promo codes by email in the background.
// At most one job per code is queued or running at a time; a duplicate
// submission joins the pending job, or schedules a follow-up pass when the
// job is already running. The follow-up skips codes whose sent_at is set.
type PromoQueue struct {
	jobs       chan *PromoJob
	results    map[string]*PromoJob
	inflight   map[string]*inflightCode
	resultsMux sync.RWMutex
	resultTTL  time.Duration
	workers    int
	maxRetries int
	baseDelay  time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once

	db     *gorm.DB
	sender email.Sender
	sink   *events.DBSink

	// For testing: signals job completion
	jobCompleted chan string
}

// NewPromoQueue creates a delivery queue. Call Start to run workers.
func NewPromoQueue(db *gorm.DB, sender email.Sender, opts Options) *PromoQueue {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 100
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = time.Hour
	}
	if sender == nil {
		sender = email.LogSender{}
	}

	return &PromoQueue{
		jobs:         make(chan *PromoJob, opts.Buffer),
		results:      make(map[string]*PromoJob),
		inflight:     make(map[string]*inflightCode),
		resultTTL:    opts.ResultTTL,
		workers:      opts.Workers,
		maxRetries:   opts.MaxRetries,
		baseDelay:    opts.BaseDelay,
		ctx:          ctx,
		cancel:       cancel,
		db:           db,
		sender:       sender,
		sink:         events.NewDBSink(db),
		jobCompleted: make(chan string, opts.Buffer),
	}
}

// Start begins processing jobs with the worker pool
func (q *PromoQueue) Start() {
	logger.Log.Info("Starting promo delivery queue", zap.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop cancels in-flight retries and waits for workers to exit.
// Undelivered codes keep sent_at unset and are picked up by EnqueueUnsent.
func (q *PromoQueue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

// NotifyReward queues delivery of code
func (q *PromoQueue) NotifyReward(ctx context.Context, code string) error {
	_, err := q.SubmitJob(code)
	return err
}

// SubmitJob queues a delivery without blocking. A code that already has a
// job in flight returns that job instead of queueing a second one.
func (q *PromoQueue) SubmitJob(code string) (*PromoJob, error) {
	if q.ctx.Err() != nil {
		return nil, fmt.Errorf("promo queue is stopped")
	}

	now := time.Now()
	job := &PromoJob{
		ID:        uuid.New().String(),
		Code:      code,
		Status:    StatusPending,
		CreatedAt: now,
	}

	q.resultsMux.Lock()
	q.pruneResults(now)
	if cur, ok := q.inflight[code]; ok {
		if existing, found := q.results[cur.jobID]; found {
			// A running job may have loaded the code before its email changed
			if existing.Status != StatusPending {
				cur.again = true
			}
			copied := *existing
			q.resultsMux.Unlock()
			return &copied, nil
		}
	}
	q.results[job.ID] = job
	q.inflight[code] = &inflightCode{jobID: job.ID}
	q.resultsMux.Unlock()

	select {
	case q.jobs <- job:
		metrics.Get().RewardDeliveryQueueSize.Set(float64(len(q.jobs)))
		return job, nil
	default:
		q.resultsMux.Lock()
		delete(q.results, job.ID)
		delete(q.inflight, code)
		q.resultsMux.Unlock()
		return nil, fmt.Errorf("promo queue is full")
	}
}

// EnqueueUnsent queues bound, unused codes that were never delivered
func (q *PromoQueue) EnqueueUnsent(ctx context.Context, limit int) (int, error) {
	var codes []string
	err := q.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("sent_at IS NULL AND used_at IS NULL AND email IS NOT NULL AND email <> ''").
		Order("issued_at ASC").
		Limit(limit).
		Pluck("code", &codes).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list unsent promo codes: %w", err)
	}

	queued := 0
	for _, code := range codes {
		if _, err := q.SubmitJob(code); err != nil {
			logger.Log.Warn("Stopped requeueing unsent promo codes", zap.Int("queued", queued), zap.Error(err))
			break
		}
		queued++
	}
	return queued, nil
}

// GetJobStatus returns the current state of a job
func (q *PromoQueue) GetJobStatus(jobID string) (*PromoJob, error) {
	q.resultsMux.RLock()
	defer q.resultsMux.RUnlock()

	job, exists := q.results[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found")
	}
	copied := *job
	return &copied, nil
}

// WaitForJobCompletion waits for a specific job to finish (for testing)
func (q *PromoQueue) WaitForJobCompletion(jobID string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case completedJobID := <-q.jobCompleted:
			if completedJobID == jobID {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for job %s", jobID)
		case <-q.ctx.Done():
			return fmt.Errorf("queue stopped")
		}
	}
}

func (q *PromoQueue) worker(workerID int) {
	defer q.wg.Done()
	logger.Log.Debug("Promo worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case job := <-q.jobs:
			metrics.Get().RewardDeliveryQueueSize.Set(float64(len(q.jobs)))
			q.processJob(workerID, job)
		case <-q.ctx.Done():
			logger.Log.Debug("Promo worker shutting down", zap.Int("worker_id", workerID))
			return
		}
	}
}

func (q *PromoQueue) processJob(workerID int, job *PromoJob) {
	defer q.signalCompletion(job.ID)
	defer q.release(job)
	q.updateJobStatus(job.ID, StatusProcessing, 0, nil)

	m := metrics.Get()
	ctx := q.ctx

	var promo models.PromoCode
	if err := q.db.WithContext(ctx).Where("code = ?", job.Code).First(&promo).Error; err != nil {
		q.fail(workerID, job, 0, fmt.Errorf("failed to load promo code: %w", err))
		return
	}
	if promo.SentAt != nil || promo.UsedAt != nil {
		m.RewardDeliveriesTotal.WithLabelValues(StatusSkipped).Inc()
		q.updateJobStatus(job.ID, StatusSkipped, 0, nil)
		return
	}
	if promo.Email == nil || *promo.Email == "" {
		q.fail(workerID, job, 0, fmt.Errorf("promo code has no email bound"))
		return
	}

	var lastErr error
	attempt := 0
	for attempt = 1; attempt <= q.maxRetries; attempt++ {
		lastErr = q.deliver(ctx, promo, attempt)
		if lastErr == nil {
			break
		}
		m.RewardDeliveriesTotal.WithLabelValues("retry").Inc()
		logger.Log.Warn("Promo delivery attempt failed",
			zap.Int("worker_id", workerID),
			logger.WithPromoCode(promo.Code),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == q.maxRetries {
			break
		}
		select {
		case <-time.After(q.backoff(attempt)):
		case <-ctx.Done():
			q.fail(workerID, job, attempt, ctx.Err())
			return
		}
	}
	if lastErr != nil {
		q.fail(workerID, job, attempt, lastErr)
		return
	}

	// The code may have been rebound to another address while sending;
	// leaving sent_at unset lets the follow-up pass deliver to it.
	now := time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("id = ? AND sent_at IS NULL AND email = ?", promo.ID, *promo.Email).
		Update("sent_at", now)
	if res.Error != nil {
		logger.Log.Error("Failed to mark promo code sent", logger.WithPromoCode(promo.Code), zap.Error(res.Error))
	} else if res.RowsAffected == 0 {
		logger.Log.Info("Promo code changed during delivery", logger.WithPromoCode(promo.Code))
	}

	m.RewardDeliveriesTotal.WithLabelValues(StatusSent).Inc()
	q.updateJobStatus(job.ID, StatusSent, attempt, nil)

	if promo.SessionID != nil && res.RowsAffected > 0 {
		if err := q.sink.Record(ctx, models.ViewEvent{
			SessionID: *promo.SessionID,
			EventType: models.EventRewardSent,
			RawPayload: models.JSONMap{
				"event":    models.EventRewardSent,
				"code":     promo.Code,
				"attempts": attempt,
			},
		}); err != nil {
			logger.Log.Warn("Failed to record reward_sent event", logger.WithPromoCode(promo.Code), zap.Error(err))
		}
	}

	logger.Log.Info("Promo code delivered",
		zap.Int("worker_id", workerID),
		logger.WithPromoCode(promo.Code),
		logger.WithEmail(*promo.Email),
		zap.Int("attempts", attempt))
}

func (q *PromoQueue) deliver(ctx context.Context, promo models.PromoCode, attempt int) error {
	ctx, span := telemetry.GetBusinessEvents().TraceRewardDelivery(ctx, promo.Code, attempt)
	defer span.End()

	err := q.sender.SendPromoCode(ctx, *promo.Email, promo.Code)
	telemetry.RecordError(span, err)
	return err
}

// backoff doubles the base delay per attempt, capped at one minute
func (q *PromoQueue) backoff(attempt int) time.Duration {
	d := q.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Minute {
			return time.Minute
		}
	}
	return d
}

func (q *PromoQueue) fail(workerID int, job *PromoJob, attempts int, err error) {
	if stderrors.Is(err, context.Canceled) {
		logger.Log.Info("Promo delivery interrupted by shutdown", logger.WithPromoCode(job.Code))
	} else {
		logger.Log.Error("Promo delivery failed",
			zap.Int("worker_id", workerID),
			logger.WithPromoCode(job.Code),
			zap.Error(err))
	}
	metrics.Get().RewardDeliveriesTotal.WithLabelValues(StatusFailed).Inc()
	msg := err.Error()
	q.updateJobStatus(job.ID, StatusFailed, attempts, &msg)
}

// release hands the code back and runs the follow-up pass if one was asked for
func (q *PromoQueue) release(job *PromoJob) {
	q.resultsMux.Lock()
	again := false
	if cur, ok := q.inflight[job.Code]; ok && cur.jobID == job.ID {
		again = cur.again
		delete(q.inflight, job.Code)
	}
	q.resultsMux.Unlock()

	if !again {
		return
	}
	if _, err := q.SubmitJob(job.Code); err != nil {
		logger.Log.Warn("Failed to requeue promo delivery", logger.WithPromoCode(job.Code), zap.Error(err))
	}
}

// pruneResults drops finished jobs older than resultTTL. Callers hold resultsMux.
func (q *PromoQueue) pruneResults(now time.Time) {
	for id, job := range q.results {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > q.resultTTL {
			delete(q.results, id)
		}
	}
}

func (q *PromoQueue) updateJobStatus(jobID, status string, attempts int, errorMessage *string) {
	q.resultsMux.Lock()
	defer q.resultsMux.Unlock()

	job, exists := q.results[jobID]
	if !exists {
		return
	}

	job.Status = status
	if attempts > 0 {
		job.Attempts = attempts
	}
	job.ErrorMessage = errorMessage

	if status == StatusSent || status == StatusSkipped || status == StatusFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
}

func (q *PromoQueue) signalCompletion(jobID string) {
	select {
	case q.jobCompleted <- jobID:
	default:
		// Channel full, don't block
	}
}
