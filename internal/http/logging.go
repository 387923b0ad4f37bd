package http

import (
	"context"
	"log/slog"
)

// operationLogger returns the logger for one handler operation. The request
// scoped logger from RequestLogger already carries request_id; without it the
// base logger is used and the identifier is added when the context has one.
func operationLogger(ctx context.Context, base *slog.Logger, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = base
		if logger == nil {
			logger = slog.Default()
		}
		if id, ok := RequestIDFromContext(ctx); ok {
			logger = logger.With("request_id", id)
		}
	}
	return logger.With(append([]any{"operation", operation}, attrs...)...)
}
