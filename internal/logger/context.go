package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields that every log line emitted while
// handling an operation should carry, without every call site threading
// them through explicitly.
type LogContext struct {
	TraceID       string // OpenTelemetry trace id
	SpanID        string // OpenTelemetry span id
	Operation     string // e.g. "fs.write", "txn.commit", "anns.search"
	CorrelationID string // matches the VexError correlation id, if any
	Principal     string // authenticated caller identity
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext previously attached with
// WithContext, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}
