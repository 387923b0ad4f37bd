package attendance

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// ExportPolicy decides when the attendance log may be exported.
type ExportPolicy string

const (
	// ExportAnytime allows export whenever a session exists.
	ExportAnytime ExportPolicy = "anytime"
	// ExportAfterExpiry allows export only once the session window closed.
	ExportAfterExpiry ExportPolicy = "after_expiry"
)

// ParseExportPolicy converts a configuration value into an ExportPolicy.
// The empty string selects ExportAnytime.
func ParseExportPolicy(value string) (ExportPolicy, error) {
	switch ExportPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ExportAnytime:
		return ExportAnytime, nil
	case ExportAfterExpiry:
		return ExportAfterExpiry, nil
	}
	return "", fmt.Errorf("unknown export policy %q", value)
}

// Allows reports whether session may be exported at the given instant.
func (p ExportPolicy) Allows(session Session, at time.Time) bool {
	if p == ExportAfterExpiry {
		return session.IsExpired(at)
	}
	return true
}

const (
	exportTimestampLayout = "2006-01-02 15:04:05"
	exportTimeLayout      = "15:04:05"
)

// ExportTabular renders the session header and records as comma separated
// text. Timestamps are rendered in loc, or UTC when loc is nil.
func ExportTabular(session Session, records []Record, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"QR Generated At", session.CreatedAt.In(loc).Format(exportTimestampLayout)},
		{"QR Expires At", session.ExpiresAt.In(loc).Format(exportTimestampLayout)},
		{"Attendance Window", SessionWindowLabel},
		nil,
		{"Name", "Roll No", "Time"},
	}
	for _, record := range records {
		rows = append(rows, []string{
			record.Name,
			record.RollNumber,
			record.SubmittedAt.In(loc).Format(exportTimeLayout),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	return buf.Bytes(), nil
}
