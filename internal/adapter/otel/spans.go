package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/titanchat/titan/internal/logger"
)

const tracerName = "titan"

// StartExchangeSpan starts a span for one message exchange.
func StartExchangeSpan(ctx context.Context, requestID, chatID, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "exchange",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("chat.id", chatID),
			attribute.String("session.tag", logger.SessionTag(sessionID)),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within an exchange.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartStreamSpan starts a span covering the streamed half of an exchange.
func StartStreamSpan(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "stream",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
		),
	)
}
