package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jan-relay/relay-api"
)

// GetTracer returns the tracer for the relay-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartPublishSpan starts a span around one publish attempt.
func StartPublishSpan(ctx context.Context, sessionID, draftID, userID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "relay.publish",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("relay.session_id", sessionID),
			attribute.String("relay.draft_id", draftID),
			attribute.String("relay.user_id", sanitizer().UserID(userID)),
		),
	)
}

// StartDraftSpan starts a span around draft creation.
func StartDraftSpan(ctx context.Context, sessionID string, basedOn int, prompt string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "relay.draft.create",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("relay.session_id", sessionID),
			attribute.Int("relay.based_on_step", basedOn),
			attribute.String("relay.prompt", sanitizer().Prompt(prompt)),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, reason string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if reason != "" {
		span.SetAttributes(attribute.String("error.reason", reason))
	}
}
