package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware_StatusCodesAreNumeric(t *testing.T) {
	m := metrics.Initialize()
	m.HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())

	router.GET("/test200", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/test404", func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND"}) })
	router.GET("/test500", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/test200", "/test404", "/test500", "/test500"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/test200", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/test404", "404")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/test500", "500")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/test200", "OK")))
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := metrics.Initialize()
	m.HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.POST("/api/v1/admin/promo/:code/consume", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/admin/promo/PROMO-A/consume", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/admin/promo/PROMO-B/consume", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/admin/promo/:code/consume", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
