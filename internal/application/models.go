package application

import (
	"time"

	"github.com/example/geo-attendance/internal/attendance"
)

// CreateSessionInput carries the admin position. Nil coordinates are reported
// as missing fields.
type CreateSessionInput struct {
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
	// BaseURL is the scheme and host the request arrived on. It is used for
	// the student link unless a public base URL is configured.
	BaseURL string
}

// SessionTicket is the result of creating a session.
type SessionTicket struct {
	Session   attendance.Session
	URL       string
	QRCode    []byte
	QRDataURL string
}

// MarkAttendanceInput carries a student submission as received from a client.
type MarkAttendanceInput struct {
	SessionID  string
	DeviceID   string
	Name       string
	RollNumber string
	Latitude   *float64
	Longitude  *float64
	Accuracy   *float64
}

// SessionStatus summarises the current session for polling clients.
type SessionStatus struct {
	SessionID   string
	GeneratedAt time.Time
	ExpiresAt   time.Time
	Expired     bool
	Remaining   time.Duration
	Attendees   int
}

// Export is a rendered attendance log ready to be served or mailed.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
	SessionID   string
	GeneratedAt time.Time
	Records     int
}

// SinkRecord is the audit row handed to record sinks. The raw device
// identifier never leaves the service; sinks receive its digest.
type SinkRecord struct {
	SessionID      string
	Name           string
	RollNumber     string
	DeviceDigest   string
	DistanceMeters float64
	SubmittedAt    time.Time
}

// SessionHistory lists the stored records of one session.
type SessionHistory struct {
	SessionID string
	Records   []SinkRecord
}

// Report is an export addressed to the configured recipients.
type Report struct {
	Subject string
	Summary string
	Export  Export
}
