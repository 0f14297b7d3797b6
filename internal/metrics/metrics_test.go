package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Initialize(), Get())
}

func TestEngineCounters(t *testing.T) {
	m := Get()

	before := testutil.ToFloat64(m.ViewsTotal.WithLabelValues("first"))
	m.ViewsTotal.WithLabelValues("first").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.ViewsTotal.WithLabelValues("first")))

	m.PointsAwardedTotal.WithLabelValues("first_view").Add(10)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.PointsAwardedTotal.WithLabelValues("first_view")), float64(10))
}
