package attendance

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is returned when location data is missing or not numeric.
	ErrInvalidInput = errors.New("attendance: invalid input")
	// ErrInvalidSession is returned when no session exists or the submitted id does not match it.
	ErrInvalidSession = errors.New("attendance: invalid session")
	// ErrExpired is returned for submissions received after the session window closed.
	ErrExpired = errors.New("attendance: session expired")
	// ErrDuplicateDevice is returned when a device already recorded attendance in the session.
	ErrDuplicateDevice = errors.New("attendance: duplicate device")
	// ErrOutOfRange is returned when the effective distance exceeds the allowed radius.
	ErrOutOfRange = errors.New("attendance: out of range")
	// ErrForbidden is returned when an operation is not allowed in the current session state.
	ErrForbidden = errors.New("attendance: forbidden")

	// ErrNoSession is returned by read operations when no session was ever created.
	ErrNoSession = fmt.Errorf("%w: no session available", ErrInvalidSession)
	// ErrSessionStillActive is returned when export is gated on expiry and the session is open.
	ErrSessionStillActive = fmt.Errorf("%w: session still active", ErrForbidden)
)

// Reason enumerates why a submission was rejected.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInvalidSession  Reason = "invalid_session"
	ReasonExpired         Reason = "expired"
	ReasonDuplicateDevice Reason = "duplicate_device"
	ReasonOutOfRange      Reason = "out_of_range"
)

// RejectionError describes a rejected submission. It matches the sentinel of
// its reason through errors.Is.
type RejectionError struct {
	Reason Reason
	// DistanceMeters is the rounded effective distance, set for ReasonOutOfRange.
	DistanceMeters int64
}

func (e *RejectionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason == ReasonOutOfRange {
		return fmt.Sprintf("%s (%d m)", e.Unwrap().Error(), e.DistanceMeters)
	}
	if err := e.Unwrap(); err != nil {
		return err.Error()
	}
	return "attendance: rejected"
}

// Unwrap returns the sentinel error for the rejection reason.
func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Reason {
	case ReasonInvalidSession:
		return ErrInvalidSession
	case ReasonExpired:
		return ErrExpired
	case ReasonDuplicateDevice:
		return ErrDuplicateDevice
	case ReasonOutOfRange:
		return ErrOutOfRange
	}
	return nil
}

func roundMeters(v float64) int64 {
	return int64(math.Round(v))
}
