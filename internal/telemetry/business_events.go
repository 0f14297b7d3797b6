package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents provides helper methods for tracing domain operations
// (views, rewards, identity merges, uploads) above the HTTP and DB layers.
type BusinessEvents struct {
	tracer trace.Tracer
}

// NewBusinessEvents creates a new business events tracer
func NewBusinessEvents() *BusinessEvents {
	return &BusinessEvents{
		tracer: otel.Tracer("business-events"),
	}
}

// ============================================================================
// PROGRESS ENGINE
// ============================================================================

// TraceRecordView creates a span for recording an asset view
func (be *BusinessEvents) TraceRecordView(ctx context.Context, sessionID, assetSlug string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "progress.record_view",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("asset.slug", assetSlug),
		),
	)
}

// TraceRewardCheck creates a span for a completion check
func (be *BusinessEvents) TraceRewardCheck(ctx context.Context, sessionID string, returnExisting bool) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "progress.check_reward",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Bool("reward.return_existing", returnExisting),
		),
	)
}

// TraceAttachIdentity creates a span for binding a session to an email identity
func (be *BusinessEvents) TraceAttachIdentity(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "progress.attach_identity",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
	)
}

// TraceRescore creates a span for recomputing an identity's total score
func (be *BusinessEvents) TraceRescore(ctx context.Context, userID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "progress.rescore_identity",
		trace.WithAttributes(
			attribute.String("user.id", userID),
		),
	)
}

// ============================================================================
// AR SERVICE
// ============================================================================

// TraceVideoUpload creates a span for an AR video upload
func (be *BusinessEvents) TraceVideoUpload(ctx context.Context, accountID string, sizeBytes int64) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "ar.video_upload",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.Int64("video.size_bytes", sizeBytes),
		),
	)
}

// TraceAwardForVideo creates a span for video scoring
func (be *BusinessEvents) TraceAwardForVideo(ctx context.Context, accountID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "ar.award_for_video",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
		),
	)
}

// ============================================================================
// REWARD DELIVERY
// ============================================================================

// TraceRewardDelivery creates a span for one promo delivery attempt
func (be *BusinessEvents) TraceRewardDelivery(ctx context.Context, code string, attempt int) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "reward.deliver",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("reward.code", code),
			attribute.Int("reward.attempt", attempt),
		),
	)
}

// RecordError marks span as failed
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

var globalBusinessEvents *BusinessEvents

// GetBusinessEvents returns the global business events tracer
func GetBusinessEvents() *BusinessEvents {
	if globalBusinessEvents == nil {
		globalBusinessEvents = NewBusinessEvents()
	}
	return globalBusinessEvents
}
