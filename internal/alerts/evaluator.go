package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/queue"
	"go.uber.org/zap"
)

// Source reports the current delivery-health values, keyed by the queue.Stat* names
type Source interface {
	Snapshot(ctx context.Context) (map[string]float64, error)
}

// Evaluator checks rules against a Source and raises or resolves alerts
type Evaluator struct {
	manager *AlertManager
	source  Source
	mu      sync.Mutex
	now     func() time.Time
}

// NewEvaluator creates a new alert evaluator
func NewEvaluator(manager *AlertManager, source Source) *Evaluator {
	return &Evaluator{
		manager: manager,
		source:  source,
		now:     time.Now,
	}
}

// Manager returns the alert store
func (e *Evaluator) Manager() *AlertManager {
	return e.manager
}

// EvaluateRules takes one snapshot and checks every enabled rule against it.
// A rule with an open alert does not fire again; the alert resolves once the
// condition clears.
func (e *Evaluator) EvaluateRules(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, err := e.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read delivery health: %w", err)
	}
	now := e.now()

	open := map[string]bool{}
	for _, a := range e.manager.GetActiveAlerts() {
		open[a.RuleID] = true
	}

	for _, rule := range e.manager.GetAllRules() {
		if !rule.Enabled {
			continue
		}

		triggered, details := evaluateRule(rule, stats)
		if !triggered {
			if open[rule.ID] {
				n := e.manager.resolveRule(rule.ID, now)
				logger.Log.Info("Alert resolved", zap.String("rule", rule.Name), zap.Int("alerts", n))
			}
			continue
		}
		if open[rule.ID] {
			continue
		}
		if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < rule.Cooldown {
			continue
		}

		e.manager.TriggerAlert(rule, fmt.Sprintf("[%s] %s", rule.Name, rule.Condition), details, now)
		triggeredAt := now
		rule.LastTriggered = &triggeredAt

		logger.Log.Warn("Alert triggered",
			zap.String("rule", rule.Name),
			zap.String("level", string(rule.Level)),
			zap.Any("details", details),
		)
	}
	return nil
}

func evaluateRule(rule *AlertRule, stats map[string]float64) (bool, map[string]interface{}) {
	details := map[string]interface{}{"threshold": rule.Threshold}

	switch rule.Type {
	case AlertTypeUnsentBacklog:
		backlog := stats[queue.StatUnsentBacklog]
		details["unsent_backlog"] = backlog
		return backlog >= rule.Threshold, details

	case AlertTypeDeliveryFailures:
		failed := stats[queue.StatFailedJobs]
		details["failed_jobs"] = failed
		return failed >= rule.Threshold, details

	case AlertTypeQueueSaturation:
		capacity := stats[queue.StatQueueCapacity]
		if capacity <= 0 {
			return false, details
		}
		pct := stats[queue.StatQueueDepth] / capacity * 100
		details["queue_depth"] = stats[queue.StatQueueDepth]
		details["saturation_pct"] = pct
		return pct >= rule.Threshold, details
	}

	return false, details
}

// InitializeDefaultRules sets up the default delivery-health rules
func (e *Evaluator) InitializeDefaultRules() {
	rules := []*AlertRule{
		{
			Name:      "Undelivered Promo Codes",
			Type:      AlertTypeUnsentBacklog,
			Enabled:   true,
			Level:     AlertLevelWarning,
			Condition: fmt.Sprintf("Bound promo codes unsent for more than %s", queue.StaleAfter),
			Threshold: 1,
			Cooldown:  15 * time.Minute,
		},
		{
			Name:      "Promo Delivery Failures",
			Type:      AlertTypeDeliveryFailures,
			Enabled:   true,
			Level:     AlertLevelCritical,
			Condition: "Deliveries that exhausted their retries >= 3",
			Threshold: 3,
			Cooldown:  15 * time.Minute,
		},
		{
			Name:      "Promo Queue Saturation",
			Type:      AlertTypeQueueSaturation,
			Enabled:   true,
			Level:     AlertLevelWarning,
			Condition: "Delivery queue more than 80% full",
			Threshold: 80,
			Cooldown:  5 * time.Minute,
		},
	}

	for _, rule := range rules {
		e.manager.AddRule(rule)
	}
}

// Run evaluates rules every interval until ctx is done
func (e *Evaluator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.EvaluateRules(ctx); err != nil {
				logger.Log.Warn("Alert evaluation failed", zap.Error(err))
			}
		}
	}
}
