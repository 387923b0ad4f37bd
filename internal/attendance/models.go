// Package attendance implements the session lifecycle and the geofenced
// validation rules for QR based attendance collection.
//
// A Manager owns exactly one current Session together with its attendance
// log. Creating a session discards the previous one. Submissions are checked
// with Validate and, when accepted, recorded atomically with the device that
// produced them.
package attendance

import (
	"math"
	"time"

	"github.com/example/geo-attendance/internal/geo"
)

const (
	// SessionWindow is how long a generated code accepts submissions.
	SessionWindow = 120 * time.Second
	// SessionWindowLabel is the human readable window printed in exports.
	SessionWindowLabel = "2 Minutes"
	// MaxEffectiveDistance is the inclusive radius, in meters, allowed after
	// subtracting both reported accuracy margins.
	MaxEffectiveDistance = 50.0
)

// Location is a reported position with its GPS accuracy radius in meters.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Point returns the coordinate part of the location.
func (l Location) Point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

func (l Location) valid() bool {
	return l.Point().Valid() && !math.IsNaN(l.Accuracy) && !math.IsInf(l.Accuracy, 0)
}

// Session is an admin initiated, time boxed, location anchored attendance window.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Origin    Location

	usedDevices map[string]struct{}
}

// IsExpired reports whether at is strictly after the session expiry.
func (s Session) IsExpired(at time.Time) bool {
	return at.After(s.ExpiresAt)
}

// Remaining returns the time left before expiry, or zero once expired.
func (s Session) Remaining(at time.Time) time.Duration {
	if s.IsExpired(at) {
		return 0
	}
	return s.ExpiresAt.Sub(at)
}

// HasDevice reports whether the device already recorded attendance.
func (s Session) HasDevice(deviceID string) bool {
	_, ok := s.usedDevices[deviceID]
	return ok
}

// DeviceCount returns the number of devices that recorded attendance.
func (s Session) DeviceCount() int {
	return len(s.usedDevices)
}

// snapshot returns a copy that shares nothing mutable with the receiver.
func (s Session) snapshot() Session {
	out := s
	out.usedDevices = make(map[string]struct{}, len(s.usedDevices))
	for id := range s.usedDevices {
		out.usedDevices[id] = struct{}{}
	}
	return out
}

// Submission is what a student sends after scanning the code.
type Submission struct {
	SessionID  string
	DeviceID   string
	Name       string
	RollNumber string
	Location   Location
}

// Record is an accepted attendance entry. Records are immutable once appended.
type Record struct {
	SessionID   string
	Name        string
	RollNumber  string
	SubmittedAt time.Time
	// DeviceID and Distance are kept for sinks; exports omit them.
	DeviceID string
	Distance float64
}
