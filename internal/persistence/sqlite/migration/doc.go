// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS (usually an embed.FS) and must be named
// {version}_{description}.sql, for example 001_attendance_records.sql.
// Each file runs in its own transaction together with the insert into the
// schema_migrations table, so a file is either fully applied and recorded
// or not at all. The checksum of every applied file is stored and compared
// on later runs; an edited migration stops the runner.
//
//	runner := migration.NewRunner(db, migrations.Files, ".", logger)
//	if _, err := runner.Run(ctx); err != nil {
//		return err
//	}
package migration
