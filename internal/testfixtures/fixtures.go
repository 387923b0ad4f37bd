package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/geo-attendance/internal/application"
	"github.com/example/geo-attendance/internal/attendance"
	"github.com/example/geo-attendance/internal/persistence"
)

var (
	studentCounter uint64
	recordCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// metersPerDegreeLatitude follows from the 6371 km earth radius used by the
// distance calculation.
const metersPerDegreeLatitude = 6371000.0 * 3.141592653589793 / 180

// ---------------------------- Location fixtures ---------------------------

// Classroom returns the admin position used by fixtures: a fixed point with
// a 10 m reported accuracy.
func Classroom() attendance.Location {
	return attendance.Location{Latitude: 12.9716, Longitude: 77.5946, Accuracy: 10}
}

// NorthOf returns a location meters due north of origin reporting accuracy.
func NorthOf(origin attendance.Location, meters, accuracy float64) attendance.Location {
	return attendance.Location{
		Latitude:  origin.Latitude + meters/metersPerDegreeLatitude,
		Longitude: origin.Longitude,
		Accuracy:  accuracy,
	}
}

// Float returns a pointer to v for optional input fields.
func Float(v float64) *float64 {
	return &v
}

// ----------------------------- Student fixtures ---------------------------

// StudentFixture is a deterministic student standing at a location.
type StudentFixture struct {
	Name       string
	RollNumber string
	DeviceID   string
	Location   attendance.Location
}

// StudentOption configures the generated student fixture.
type StudentOption func(*StudentFixture)

// NewStudentFixture returns a student standing 20 m from Classroom with a
// 10 m accuracy, well inside the allowed radius.
func NewStudentFixture(opts ...StudentOption) StudentFixture {
	idx := atomic.AddUint64(&studentCounter, 1)
	fixture := StudentFixture{
		Name:       fmt.Sprintf("Student %03d", idx),
		RollNumber: fmt.Sprintf("R%03d", idx),
		DeviceID:   fmt.Sprintf("device-%03d", idx),
		Location:   NorthOf(Classroom(), 20, 10),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithStudentName overrides the generated name.
func WithStudentName(name string) StudentOption {
	return func(f *StudentFixture) {
		f.Name = name
	}
}

// WithStudentRoll overrides the generated roll number.
func WithStudentRoll(roll string) StudentOption {
	return func(f *StudentFixture) {
		f.RollNumber = roll
	}
}

// WithStudentDevice overrides the generated device identifier.
func WithStudentDevice(deviceID string) StudentOption {
	return func(f *StudentFixture) {
		f.DeviceID = deviceID
	}
}

// WithStudentLocation places the student at loc.
func WithStudentLocation(loc attendance.Location) StudentOption {
	return func(f *StudentFixture) {
		f.Location = loc
	}
}

// Submission converts the fixture into a core submission for sessionID.
func (f StudentFixture) Submission(sessionID string) attendance.Submission {
	return attendance.Submission{
		SessionID:  sessionID,
		DeviceID:   f.DeviceID,
		Name:       f.Name,
		RollNumber: f.RollNumber,
		Location:   f.Location,
	}
}

// Input converts the fixture into a service input for sessionID.
func (f StudentFixture) Input(sessionID string) application.MarkAttendanceInput {
	return application.MarkAttendanceInput{
		SessionID:  sessionID,
		DeviceID:   f.DeviceID,
		Name:       f.Name,
		RollNumber: f.RollNumber,
		Latitude:   Float(f.Location.Latitude),
		Longitude:  Float(f.Location.Longitude),
		Accuracy:   Float(f.Location.Accuracy),
	}
}

// ----------------------------- Record fixtures ----------------------------

// RecordFixture is a deterministic stored attendance record.
type RecordFixture struct {
	SessionID      string
	Name           string
	RollNumber     string
	DeviceID       string
	DistanceMeters float64
	SubmittedAt    time.Time
}

// RecordOption configures the generated record fixture.
type RecordOption func(*RecordFixture)

// NewRecordFixture returns a record for session "session-1" submitted a few
// seconds after ReferenceTime.
func NewRecordFixture(opts ...RecordOption) RecordFixture {
	idx := atomic.AddUint64(&recordCounter, 1)
	fixture := RecordFixture{
		SessionID:      "session-1",
		Name:           fmt.Sprintf("Attendee %03d", idx),
		RollNumber:     fmt.Sprintf("A%03d", idx),
		DeviceID:       fmt.Sprintf("record-device-%03d", idx),
		DistanceMeters: 12.5,
		SubmittedAt:    referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRecordSession overrides the session identifier.
func WithRecordSession(sessionID string) RecordOption {
	return func(f *RecordFixture) {
		f.SessionID = sessionID
	}
}

// WithRecordDevice overrides the device identifier.
func WithRecordDevice(deviceID string) RecordOption {
	return func(f *RecordFixture) {
		f.DeviceID = deviceID
	}
}

// WithRecordName overrides the student name.
func WithRecordName(name string) RecordOption {
	return func(f *RecordFixture) {
		f.Name = name
	}
}

// WithRecordSubmittedAt overrides the submission instant.
func WithRecordSubmittedAt(t time.Time) RecordOption {
	return func(f *RecordFixture) {
		f.SubmittedAt = t
	}
}

// Sink converts the fixture into the row handed to record sinks.
func (f RecordFixture) Sink() application.SinkRecord {
	return application.SinkRecord{
		SessionID:      f.SessionID,
		Name:           f.Name,
		RollNumber:     f.RollNumber,
		DeviceDigest:   application.DeviceDigest(f.DeviceID),
		DistanceMeters: f.DistanceMeters,
		SubmittedAt:    f.SubmittedAt,
	}
}

// Persistence converts the fixture into a stored record.
func (f RecordFixture) Persistence() persistence.AttendanceRecord {
	return persistence.AttendanceRecord{
		SessionID:      f.SessionID,
		Name:           f.Name,
		RollNumber:     f.RollNumber,
		DeviceDigest:   application.DeviceDigest(f.DeviceID),
		DistanceMeters: f.DistanceMeters,
		SubmittedAt:    f.SubmittedAt,
	}
}

// CreateInput converts an admin position into a session creation input.
func CreateInput(origin attendance.Location, baseURL string) application.CreateSessionInput {
	return application.CreateSessionInput{
		Latitude:  Float(origin.Latitude),
		Longitude: Float(origin.Longitude),
		Accuracy:  Float(origin.Accuracy),
		BaseURL:   baseURL,
	}
}
