package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// AlertLevel represents the severity of an alert
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// AlertType names the delivery-health signal a rule watches
type AlertType string

const (
	AlertTypeUnsentBacklog    AlertType = "unsent_backlog"
	AlertTypeDeliveryFailures AlertType = "delivery_failures"
	AlertTypeQueueSaturation  AlertType = "queue_saturation"
)

// Alert represents a triggered alert
type Alert struct {
	ID         string                 `json:"id"`
	Type       AlertType              `json:"type"`
	Level      AlertLevel             `json:"level"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Timestamp  time.Time              `json:"timestamp"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	IsResolved bool                   `json:"is_resolved"`
	RuleID     string                 `json:"rule_id"`
}

// AlertRule fires when the watched value reaches Threshold
type AlertRule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          AlertType     `json:"type"`
	Enabled       bool          `json:"enabled"`
	Level         AlertLevel    `json:"level"`
	Condition     string        `json:"condition"` // Human-readable condition
	Threshold     float64       `json:"threshold"`
	Cooldown      time.Duration `json:"cooldown"`
	LastTriggered *time.Time    `json:"last_triggered,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// AlertManager keeps alerts and rules in memory
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert
	rules     map[string]*AlertRule
	maxAlerts int
	seq       int
}

// NewAlertManager creates a new alert manager
func NewAlertManager() *AlertManager {
	return &AlertManager{
		alerts:    make(map[string]*Alert),
		rules:     make(map[string]*AlertRule),
		maxAlerts: 500,
	}
}

// TriggerAlert creates and stores a new alert
func (am *AlertManager) TriggerAlert(rule *AlertRule, message string, details map[string]interface{}, now time.Time) *Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.seq++
	alert := &Alert{
		ID:        fmt.Sprintf("alert_%d_%s", am.seq, rule.Type),
		Type:      rule.Type,
		Level:     rule.Level,
		Message:   message,
		Details:   details,
		Timestamp: now,
		RuleID:    rule.ID,
	}
	am.alerts[alert.ID] = alert

	if len(am.alerts) > am.maxAlerts {
		am.pruneOldAlerts()
	}
	return alert
}

// ResolveAlert marks an alert as resolved
func (am *AlertManager) ResolveAlert(alertID string, now time.Time) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, exists := am.alerts[alertID]
	if !exists {
		return fmt.Errorf("alert not found: %s", alertID)
	}
	if !alert.IsResolved {
		alert.ResolvedAt = &now
		alert.IsResolved = true
	}
	return nil
}

// resolveRule resolves every open alert raised by ruleID
func (am *AlertManager) resolveRule(ruleID string, now time.Time) int {
	am.mu.Lock()
	defer am.mu.Unlock()

	n := 0
	for _, alert := range am.alerts {
		if alert.RuleID == ruleID && !alert.IsResolved {
			resolvedAt := now
			alert.ResolvedAt = &resolvedAt
			alert.IsResolved = true
			n++
		}
	}
	return n
}

// GetActiveAlerts returns unresolved alerts, newest first
func (am *AlertManager) GetActiveAlerts() []*Alert {
	return am.filter(func(a *Alert) bool { return !a.IsResolved })
}

// GetAllAlerts returns every retained alert, newest first
func (am *AlertManager) GetAllAlerts() []*Alert {
	return am.filter(func(*Alert) bool { return true })
}

func (am *AlertManager) filter(keep func(*Alert) bool) []*Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	out := make([]*Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		if keep(alert) {
			copied := *alert
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// AddRule registers a rule and assigns its ID
func (am *AlertManager) AddRule(rule *AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()

	rule.ID = fmt.Sprintf("rule_%s", rule.Type)
	rule.CreatedAt = time.Now()
	am.rules[rule.ID] = rule
}

// GetAllRules returns all alert rules ordered by ID
func (am *AlertManager) GetAllRules() []*AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	rules := make([]*AlertRule, 0, len(am.rules))
	for _, rule := range am.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// pruneOldAlerts drops the oldest resolved alerts first, then the oldest of any kind
func (am *AlertManager) pruneOldAlerts() {
	alerts := make([]*Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Timestamp.Before(alerts[j].Timestamp) })

	toRemove := len(am.alerts) - am.maxAlerts
	for _, alert := range alerts {
		if toRemove <= 0 {
			return
		}
		if alert.IsResolved {
			delete(am.alerts, alert.ID)
			toRemove--
		}
	}
	for _, alert := range alerts {
		if toRemove <= 0 {
			return
		}
		if _, ok := am.alerts[alert.ID]; ok {
			delete(am.alerts, alert.ID)
			toRemove--
		}
	}
}

// GetStats returns alert counts by state and level
func (am *AlertManager) GetStats() map[string]interface{} {
	am.mu.RLock()
	defer am.mu.RUnlock()

	active, critical, warning, info := 0, 0, 0, 0
	for _, alert := range am.alerts {
		if alert.IsResolved {
			continue
		}
		active++
		switch alert.Level {
		case AlertLevelCritical:
			critical++
		case AlertLevelWarning:
			warning++
		case AlertLevelInfo:
			info++
		}
	}

	return map[string]interface{}{
		"total_alerts":   len(am.alerts),
		"active_alerts":  active,
		"critical_count": critical,
		"warning_count":  warning,
		"info_count":     info,
		"total_rules":    len(am.rules),
	}
}
