package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/geo-attendance/internal/attendance"
	"github.com/example/geo-attendance/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, attendance.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, attendance.ErrNoSession):
		return "no_session"
	case errors.Is(err, attendance.ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, attendance.ErrExpired):
		return "expired"
	case errors.Is(err, attendance.ErrDuplicateDevice):
		return "duplicate_device"
	case errors.Is(err, attendance.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, attendance.ErrSessionStillActive):
		return "session_active"
	case errors.Is(err, attendance.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrMailerNotConfigured), errors.Is(err, ErrRendererNotConfigured), errors.Is(err, ErrHistoryNotConfigured):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "unexpected"
}
