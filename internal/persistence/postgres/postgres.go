// Package postgres stores attendance records in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/geo-attendance/internal/persistence"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	name TEXT NOT NULL,
	roll_number TEXT NOT NULL,
	device_digest TEXT NOT NULL,
	distance_meters DOUBLE PRECISION NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, device_digest)
);
CREATE INDEX IF NOT EXISTS idx_attendance_records_session
	ON attendance_records (session_id, submitted_at);
`

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns pool sizing for a single attendance process.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        8,
		MinConns:        1,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// Store is a PostgreSQL backed persistence.RecordRepository.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the records table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// AppendRecord stores an accepted attendance record.
func (s *Store) AppendRecord(ctx context.Context, record persistence.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_records (session_id, name, roll_number, device_digest, distance_meters, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.SessionID,
		record.Name,
		record.RollNumber,
		record.DeviceDigest,
		record.DistanceMeters,
		record.SubmittedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		}
		return fmt.Errorf("postgres: append record: %w", err)
	}
	return nil
}

// ListRecords returns the records of a session in submission order.
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]persistence.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, name, roll_number, device_digest, distance_meters, submitted_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY submitted_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.AttendanceRecord, error) {
		var record persistence.AttendanceRecord
		err := row.Scan(
			&record.SessionID,
			&record.Name,
			&record.RollNumber,
			&record.DeviceDigest,
			&record.DistanceMeters,
			&record.SubmittedAt,
		)
		return record, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan records: %w", err)
	}
	return records, nil
}
