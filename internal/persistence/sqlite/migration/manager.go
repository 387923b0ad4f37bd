package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
)

// Runner applies the pending migrations found in a file system.
type Runner struct {
	executor *Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewRunner returns a runner reading migrations from dir within fsys.
func NewRunner(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: NewExecutor(db),
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Status reports applied and pending migrations. It fails with
// ErrChecksumMismatch when an applied file changed.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if err := r.executor.EnsureVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := Scan(r.fsys, r.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := r.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Version] = a.Checksum
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, m := range available {
		checksum, ok := checksums[m.Version]
		if !ok {
			status.Pending = append(status.Pending, m)
			continue
		}
		if checksum != m.Checksum {
			return Status{}, newMigrationError(m, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

// Run applies pending migrations in version order and returns those applied.
// It stops at the first failure; earlier migrations stay applied.
func (r *Runner) Run(ctx context.Context) ([]Migration, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	if len(status.Pending) == 0 {
		r.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil, nil
	}

	applied := make([]Migration, 0, len(status.Pending))
	for _, m := range status.Pending {
		if err := r.executor.Apply(ctx, m); err != nil {
			r.logger.ErrorContext(ctx, "migration failed", "version", m.Version, "file", m.FileName, "error", err)
			return applied, fmt.Errorf("apply migrations: %w", err)
		}
		r.logger.InfoContext(ctx, "migration applied", "version", m.Version, "description", m.Description)
		applied = append(applied, m)
	}
	return applied, nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
}
