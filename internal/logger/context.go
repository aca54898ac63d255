package logger

import "context"

type requestIDKey struct{}

// WithRequestID stores the request ID on the context for log correlation
// and cancel bookkeeping downstream.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by ctx, or "" when none was
// set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// SessionTag shortens a session ID for log output so full identifiers
// never land in logs.
func SessionTag(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8] + "..."
}
