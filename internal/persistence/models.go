package persistence

import "time"

// AttendanceRecord is an accepted submission as stored by a record sink.
// Devices are identified by digest only.
type AttendanceRecord struct {
	SessionID      string
	Name           string
	RollNumber     string
	DeviceDigest   string
	DistanceMeters float64
	SubmittedAt    time.Time
}
