package persistence

import "context"

// RecordRepository stores accepted attendance records.
type RecordRepository interface {
	// AppendRecord stores record. It returns ErrDuplicate when the device
	// digest already has a record for the session.
	AppendRecord(ctx context.Context, record AttendanceRecord) error
	// ListRecords returns the records of a session ordered by submission time.
	ListRecords(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
}
