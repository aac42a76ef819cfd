package migration

import "time"

// Migration is a single versioned schema change.
type Migration struct {
	Version     string // numeric prefix, e.g. "001"
	Description string // from a "-- Description:" header or the file name
	SQL         string
	FilePath    string
	Checksum    string // sha256 of SQL
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
