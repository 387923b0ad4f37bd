// Package redisstore keeps attendance records in Redis lists, one list per
// session, with a companion set of device digests for de-duplication.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/geo-attendance/internal/persistence"
)

const (
	defaultPrefix = "attendance:"
	// DefaultTTL bounds how long a session's keys survive the last write.
	DefaultTTL = 7 * 24 * time.Hour
)

// Options configures a Store.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

// Store is a Redis backed persistence.RecordRepository.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type storedRecord struct {
	SessionID      string    `json:"session_id"`
	Name           string    `json:"name"`
	RollNumber     string    `json:"roll_number"`
	DeviceDigest   string    `json:"device_digest"`
	DistanceMeters float64   `json:"distance_meters"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Dial parses redisURL, configures the pool and pings the server.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 1
	opt.DialTimeout = 5 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// New wraps client.
func New(client *redis.Client, opts Options) *Store {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Store{client: client, prefix: opts.KeyPrefix, ttl: opts.TTL}
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) recordsKey(sessionID string) string {
	return s.prefix + "session:" + sessionID + ":records"
}

func (s *Store) devicesKey(sessionID string) string {
	return s.prefix + "session:" + sessionID + ":devices"
}

// AppendRecord stores record unless its device digest already has one for
// the session.
func (s *Store) AppendRecord(ctx context.Context, record persistence.AttendanceRecord) error {
	payload, err := json.Marshal(storedRecord{
		SessionID:      record.SessionID,
		Name:           record.Name,
		RollNumber:     record.RollNumber,
		DeviceDigest:   record.DeviceDigest,
		DistanceMeters: record.DistanceMeters,
		SubmittedAt:    record.SubmittedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: encode record: %w", err)
	}

	devices := s.devicesKey(record.SessionID)
	added, err := s.client.SAdd(ctx, devices, record.DeviceDigest).Result()
	if err != nil {
		return fmt.Errorf("redis: add device: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("%w: device already recorded for session %s", persistence.ErrDuplicate, record.SessionID)
	}

	records := s.recordsKey(record.SessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, records, payload)
		pipe.Expire(ctx, records, s.ttl)
		pipe.Expire(ctx, devices, s.ttl)
		return nil
	})
	if err != nil {
		// Release the device so a retry is not reported as a duplicate.
		_ = s.client.SRem(context.WithoutCancel(ctx), devices, record.DeviceDigest).Err()
		return fmt.Errorf("redis: append record: %w", err)
	}
	return nil
}

// ListRecords returns the records of a session in the order they were appended.
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]persistence.AttendanceRecord, error) {
	values, err := s.client.LRange(ctx, s.recordsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list records: %w", err)
	}

	records := make([]persistence.AttendanceRecord, 0, len(values))
	for _, value := range values {
		var stored storedRecord
		if err := json.Unmarshal([]byte(value), &stored); err != nil {
			return nil, fmt.Errorf("redis: decode record: %w", err)
		}
		records = append(records, persistence.AttendanceRecord{
			SessionID:      stored.SessionID,
			Name:           stored.Name,
			RollNumber:     stored.RollNumber,
			DeviceDigest:   stored.DeviceDigest,
			DistanceMeters: stored.DistanceMeters,
			SubmittedAt:    stored.SubmittedAt,
		})
	}
	return records, nil
}
