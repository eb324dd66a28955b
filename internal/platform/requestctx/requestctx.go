package requestctx

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return ctxlog.With(ctx, ctxlog.From(ctx).With(slog.String("requestId", requestID)))
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns the request-scoped logger, falling back to slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	return ctxlog.From(ctx)
}
