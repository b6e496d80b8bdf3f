package contextutil

import "context"

type contextKey string

const TraceIDKey contextKey = "traceID"

func TraceIDFromContext(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return "unknown-trace-id"
	}
	return traceID
}

// WithTraceID returns a copy of ctx carrying traceID for log lines.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
