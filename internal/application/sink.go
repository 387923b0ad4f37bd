package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// RecordSink receives accepted attendance records for durable storage.
type RecordSink interface {
	AppendRecord(ctx context.Context, record SinkRecord) error
}

// RecordHistory reads back records a sink stored.
type RecordHistory interface {
	// ListRecords returns the records of a session ordered by submission time.
	ListRecords(ctx context.Context, sessionID string) ([]SinkRecord, error)
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(ctx context.Context, record SinkRecord) error

// AppendRecord calls f.
func (f RecordSinkFunc) AppendRecord(ctx context.Context, record SinkRecord) error {
	return f(ctx, record)
}

// MultiSink fans a record out to every configured sink.
type MultiSink struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	sink RecordSink
}

// NewMultiSink returns an empty fan-out sink.
func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add registers sink under name. Nil sinks are ignored.
func (m *MultiSink) Add(name string, sink RecordSink) {
	if m == nil || sink == nil {
		return
	}
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks.
func (m *MultiSink) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

// AppendRecord delivers record to every sink. A failing sink does not stop
// delivery to the others; all failures are joined.
func (m *MultiSink) AppendRecord(ctx context.Context, record SinkRecord) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.sink.AppendRecord(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Readable reports whether a registered sink can list stored records.
func (m *MultiSink) Readable() bool {
	return m.reader() != nil
}

// ListRecords reads from the first registered sink that implements
// RecordHistory, so registration order sets the preferred store.
func (m *MultiSink) ListRecords(ctx context.Context, sessionID string) ([]SinkRecord, error) {
	reader := m.reader()
	if reader == nil {
		return nil, ErrHistoryNotConfigured
	}
	records, err := reader.sink.(RecordHistory).ListRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s sink: %w", reader.name, err)
	}
	return records, nil
}

func (m *MultiSink) reader() *namedSink {
	if m == nil {
		return nil
	}
	for i := range m.sinks {
		if _, ok := m.sinks[i].sink.(RecordHistory); ok {
			return &m.sinks[i]
		}
	}
	return nil
}

// DeviceDigest returns the hex encoded BLAKE2b-256 digest of a device identifier.
func DeviceDigest(deviceID string) string {
	sum := blake2b.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}
