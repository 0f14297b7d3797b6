package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// AWS S3 / STORAGE CALLS
// ============================================================================

// TraceS3Call creates a span for AWS S3 operations such as put_object
func TraceS3Call(ctx context.Context, operation, bucket, key string, sizeBytes int64) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("s3").Start(ctx, "s3."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("s3.operation", operation),
			attribute.String("s3.bucket", bucket),
			attribute.String("s3.key", key),
		),
	)
	if sizeBytes > 0 {
		span.SetAttributes(attribute.Int64("s3.size_bytes", sizeBytes))
	}
	return ctx, span
}

// ============================================================================
// AWS SES / EMAIL CALLS
// ============================================================================

// TraceSESCall creates a span for an outbound email
func TraceSESCall(ctx context.Context, operation, template string) (context.Context, trace.Span) {
	return otel.Tracer("ses").Start(ctx, "ses."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ses.operation", operation),
			attribute.String("email.template", template),
		),
	)
}

// RecordServiceError records a service error in the current span
func RecordServiceError(span trace.Span, service string, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetAttributes(
			attribute.String("error.type", "service_error"),
			attribute.String("error.service", service),
		)
	}
}

// RecordServiceSuccess marks a service call span as successful
func RecordServiceSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SetRequestContext sets request-specific attributes
func SetRequestContext(span trace.Span, requestID string, userAgent string) {
	if requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}
	if userAgent != "" {
		if len(userAgent) > 200 {
			userAgent = userAgent[:200] + "..."
		}
		span.SetAttributes(attribute.String("http.user_agent", userAgent))
	}
}
