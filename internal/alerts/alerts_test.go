package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arbmuseum/arb/backend/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats map[string]float64
	err   error
}

func (f *fakeSource) Snapshot(ctx context.Context) (map[string]float64, error) {
	return f.stats, f.err
}

func newTestEvaluator(src Source) (*Evaluator, *time.Time) {
	e := NewEvaluator(NewAlertManager(), src)
	e.InitializeDefaultRules()
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestEvaluatorTriggersOncePerOpenAlert(t *testing.T) {
	src := &fakeSource{stats: map[string]float64{
		queue.StatUnsentBacklog: 4,
		queue.StatQueueCapacity: 100,
	}}
	e, _ := newTestEvaluator(src)

	require.NoError(t, e.EvaluateRules(context.Background()))
	require.NoError(t, e.EvaluateRules(context.Background()))

	active := e.Manager().GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeUnsentBacklog, active[0].Type)
	assert.Equal(t, AlertLevelWarning, active[0].Level)
	assert.Equal(t, float64(4), active[0].Details["unsent_backlog"])
}

func TestEvaluatorResolvesAndRespectsCooldown(t *testing.T) {
	src := &fakeSource{stats: map[string]float64{queue.StatFailedJobs: 3}}
	e, clock := newTestEvaluator(src)
	ctx := context.Background()

	require.NoError(t, e.EvaluateRules(ctx))
	require.Len(t, e.Manager().GetActiveAlerts(), 1)

	src.stats = map[string]float64{queue.StatFailedJobs: 0}
	*clock = clock.Add(time.Minute)
	require.NoError(t, e.EvaluateRules(ctx))
	assert.Empty(t, e.Manager().GetActiveAlerts())
	all := e.Manager().GetAllAlerts()
	require.Len(t, all, 1)
	assert.True(t, all[0].IsResolved)

	// Condition returns inside the cooldown window
	src.stats = map[string]float64{queue.StatFailedJobs: 5}
	*clock = clock.Add(time.Minute)
	require.NoError(t, e.EvaluateRules(ctx))
	assert.Empty(t, e.Manager().GetActiveAlerts())

	*clock = clock.Add(20 * time.Minute)
	require.NoError(t, e.EvaluateRules(ctx))
	active := e.Manager().GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertLevelCritical, active[0].Level)
}

func TestQueueSaturation(t *testing.T) {
	src := &fakeSource{stats: map[string]float64{
		queue.StatQueueDepth:    90,
		queue.StatQueueCapacity: 100,
	}}
	e, _ := newTestEvaluator(src)
	require.NoError(t, e.EvaluateRules(context.Background()))

	active := e.Manager().GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeQueueSaturation, active[0].Type)
	assert.InDelta(t, 90.0, active[0].Details["saturation_pct"], 0.001)

	stats := e.Manager().GetStats()
	assert.Equal(t, 1, stats["active_alerts"])
	assert.Equal(t, 1, stats["warning_count"])
	assert.Equal(t, 3, stats["total_rules"])
}

func TestEvaluatorSourceError(t *testing.T) {
	e, _ := newTestEvaluator(&fakeSource{err: errors.New("db down")})
	assert.Error(t, e.EvaluateRules(context.Background()))
	assert.Empty(t, e.Manager().GetAllAlerts())
}

func TestPruneKeepsNewest(t *testing.T) {
	m := NewAlertManager()
	m.maxAlerts = 2
	rule := &AlertRule{Type: AlertTypeUnsentBacklog, Level: AlertLevelInfo}
	m.AddRule(rule)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := m.TriggerAlert(rule, "a", nil, base)
	require.NoError(t, m.ResolveAlert(first.ID, base))
	m.TriggerAlert(rule, "b", nil, base.Add(time.Second))
	m.TriggerAlert(rule, "c", nil, base.Add(2*time.Second))

	all := m.GetAllAlerts()
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].Message)
	assert.Equal(t, "b", all[1].Message)
	assert.Error(t, m.ResolveAlert("missing", base))
}
