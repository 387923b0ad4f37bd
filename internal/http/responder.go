package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/geo-attendance/internal/application"
	"github.com/example/geo-attendance/internal/attendance"
)

var errBadRequestBody = errors.New("Invalid request body")

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, newErrorResponse(statusCode(status), message))
}

// handleServiceError writes the response for an error returned by the
// attendance service. Rejection messages match what the student page shows.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		resp := newErrorResponse("INVALID_INPUT", "Invalid request")
		resp.Errors = vErr.FieldErrors
		r.writeJSON(ctx, w, http.StatusBadRequest, resp)
		return
	}

	switch {
	case errors.Is(err, attendance.ErrNoSession):
		r.writeJSON(ctx, w, http.StatusBadRequest, newErrorResponse("NO_SESSION", "No session available"))
	case errors.Is(err, attendance.ErrInvalidSession):
		r.writeJSON(ctx, w, http.StatusBadRequest, newErrorResponse("INVALID_SESSION", "Invalid session"))
	case errors.Is(err, attendance.ErrExpired):
		r.writeJSON(ctx, w, http.StatusForbidden, newErrorResponse("EXPIRED", "QR expired"))
	case errors.Is(err, attendance.ErrDuplicateDevice):
		r.writeJSON(ctx, w, http.StatusForbidden, newErrorResponse("DUPLICATE_DEVICE", "Attendance already marked from this device"))
	case errors.Is(err, attendance.ErrOutOfRange):
		var rejection *attendance.RejectionError
		var meters int64
		if errors.As(err, &rejection) {
			meters = rejection.DistanceMeters
		}
		resp := newErrorResponse("OUT_OF_RANGE", fmt.Sprintf("Outside allowed range (%d m)", meters))
		resp.DistanceMeters = &meters
		r.writeJSON(ctx, w, http.StatusForbidden, resp)
	case errors.Is(err, attendance.ErrSessionStillActive):
		r.writeJSON(ctx, w, http.StatusForbidden, newErrorResponse("SESSION_ACTIVE", "Session is still active"))
	case errors.Is(err, attendance.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, newErrorResponse("FORBIDDEN", statusMessage(http.StatusForbidden)))
	case errors.Is(err, application.ErrMailerNotConfigured):
		r.writeJSON(ctx, w, http.StatusNotImplemented, newErrorResponse("NOT_CONFIGURED", "E-mail reports are not configured"))
	case errors.Is(err, application.ErrHistoryNotConfigured):
		r.writeJSON(ctx, w, http.StatusNotImplemented, newErrorResponse("NOT_CONFIGURED", "Record history is not configured"))
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, newErrorResponse("INTERNAL", statusMessage(http.StatusInternalServerError)))
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusForbidden:
		return "Operation not allowed"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	default:
		return "Internal server error"
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		return "INTERNAL"
	}
}

// errorResponse keeps the plain "error" field the student page reads next to
// the structured fields.
type errorResponse struct {
	ErrorCode      string            `json:"error_code,omitempty"`
	Message        string            `json:"message"`
	Error          string            `json:"error"`
	Errors         map[string]string `json:"errors,omitempty"`
	DistanceMeters *int64            `json:"distance_meters,omitempty"`
}

func newErrorResponse(code, message string) errorResponse {
	return errorResponse{ErrorCode: code, Message: message, Error: message}
}
