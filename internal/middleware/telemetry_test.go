package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingMiddlewareDecoratesServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(TracingMiddleware("arb-test")...)
	r.GET("/api/v1/progress", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress?session_id=s-1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	req.Header.Set("User-Agent", "arb-kiosk/1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "req-42", attrs["request.id"])
	assert.Equal(t, "arb-kiosk/1.0", attrs["http.user_agent"])
	assert.Equal(t, "s-1", attrs["session.id"])
}
