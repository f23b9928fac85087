package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext stores l as the logger of one request or tool call.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or a nop logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Annotate returns ctx whose logger also carries fields, so stages deeper in the
// pipeline (search mode, item id) add to the request line instead of repeating it.
// Without a request logger ctx is returned as is.
func Annotate(ctx context.Context, fields ...zap.Field) context.Context {
	l, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	if !ok || len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, l.With(fields...))
}

// Principal names the caller. Anonymous callers log user_id "anonymous".
func Principal(userID, workspaceID string) []zap.Field {
	if userID == "" {
		userID = "anonymous"
	}
	fields := []zap.Field{zap.String("user_id", userID)}
	if workspaceID != "" {
		fields = append(fields, zap.String("workspace_id", workspaceID))
	}
	return fields
}
