package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/geo-attendance/internal/persistence"
	"github.com/example/geo-attendance/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timestampLayout has a fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Storage is a SQLite backed persistence.RecordRepository.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the database at dsn with DefaultConfig.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(DefaultConfig(dsn), nil)
}

// OpenWithConfig opens the database described by cfg.
func OpenWithConfig(cfg Config, logger *slog.Logger) (*Storage, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{db: db, logger: logger}, nil
}

// Close releases the underlying connections.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	runner := migration.NewRunner(s.db, migrationFiles, "migrations", s.logger)
	if _, err := runner.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// AppendRecord stores an accepted attendance record.
func (s *Storage) AppendRecord(ctx context.Context, record persistence.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, name, roll_number, device_digest, distance_meters, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Name,
		record.RollNumber,
		record.DeviceDigest,
		record.DistanceMeters,
		record.SubmittedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ListRecords returns the stored records of a session in submission order.
func (s *Storage) ListRecords(ctx context.Context, sessionID string) ([]persistence.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, name, roll_number, device_digest, distance_meters, submitted_at
		FROM attendance_records
		WHERE session_id = ?
		ORDER BY submitted_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer rows.Close()

	var records []persistence.AttendanceRecord
	for rows.Next() {
		var (
			record      persistence.AttendanceRecord
			submittedAt string
		)
		if err := rows.Scan(&record.SessionID, &record.Name, &record.RollNumber, &record.DeviceDigest, &record.DistanceMeters, &submittedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		record.SubmittedAt, err = time.Parse(timestampLayout, submittedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse submitted_at: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate records: %w", err)
	}
	return records, nil
}

func mapError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	return fmt.Errorf("sqlite: %w", err)
}
