package middleware

import (
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware returns the otelgin server-span middleware followed by
// a handler that decorates the live span. otelgin ends its span when the
// chain returns, so the decoration has to run inside the chain.
func TracingMiddleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), spanAttributes()}
}

func spanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		telemetry.SetRequestContext(span, c.GetString("request_id"), c.Request.UserAgent())
		if sessionID := c.Query("session_id"); sessionID != "" {
			span.SetAttributes(attribute.String("session.id", sessionID))
		}

		c.Next()

		if accountID := c.GetString("account_id"); accountID != "" {
			span.SetAttributes(attribute.String("account.id", accountID))
		}
		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}
