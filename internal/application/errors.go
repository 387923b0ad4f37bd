package application

import (
	"errors"

	"github.com/example/geo-attendance/internal/attendance"
)

var (
	// ErrMailerNotConfigured is returned when an e-mail export is requested without a mailer.
	ErrMailerNotConfigured = errors.New("application: report mailer not configured")
	// ErrHistoryNotConfigured is returned when stored records are requested without a readable sink.
	ErrHistoryNotConfigured = errors.New("application: record history not configured")
	// ErrRendererNotConfigured is returned when a QR image is requested without a renderer.
	ErrRendererNotConfigured = errors.New("application: qr renderer not configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
// It matches attendance.ErrInvalidInput through errors.Is.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// Is reports whether target is the invalid input sentinel.
func (v *ValidationError) Is(target error) bool {
	return v != nil && target == attendance.ErrInvalidInput
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
