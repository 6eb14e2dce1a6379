package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// LineageKey is the context key for the lineage partition key.
	LineageKey contextKey = "lineage"

	// ChatKey is the context key for the chat sort key.
	ChatKey contextKey = "chat_sk"

	// StageKey is the context key for the pipeline stage.
	StageKey contextKey = "stage"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithLineage adds a lineage partition key to the context.
func WithLineage(ctx context.Context, pk string) context.Context {
	return context.WithValue(ctx, LineageKey, pk)
}

// GetLineage retrieves the lineage partition key from the context.
func GetLineage(ctx context.Context) string {
	return stringValue(ctx, LineageKey)
}

// WithChat adds a chat sort key to the context.
func WithChat(ctx context.Context, chatSK string) context.Context {
	return context.WithValue(ctx, ChatKey, chatSK)
}

// GetChat retrieves the chat sort key from the context.
func GetChat(ctx context.Context) string {
	return stringValue(ctx, ChatKey)
}

// WithStage adds a pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// GetStage retrieves the pipeline stage name from the context.
func GetStage(ctx context.Context) string {
	return stringValue(ctx, StageKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known fields from ctx in a fixed order.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range []contextKey{RequestIDKey, LineageKey, ChatKey, StageKey} {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
