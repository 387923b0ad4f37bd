package migration

import "time"

// Migration is a versioned schema change.
type Migration struct {
	Version     string
	Description string
	FileName    string
	SQL         string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	Checksum      string
	AppliedAt     time.Time
	ExecutionTime time.Duration
}

// Status describes the schema version of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
