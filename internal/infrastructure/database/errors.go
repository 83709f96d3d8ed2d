package database

import "errors"

// ErrCheckpointBusy is returned when a WAL checkpoint could not complete
// because readers or writers held the database.
var ErrCheckpointBusy = errors.New("database: checkpoint blocked by active connections")

// Migration errors.
var (
	// ErrInvalidSteps is returned when a rollback is asked for fewer than
	// one step.
	ErrInvalidSteps = errors.New("database: rollback steps must be at least 1")

	// ErrMigrationMissing is returned when an applied version has no
	// migration file to revert it with.
	ErrMigrationMissing = errors.New("database: applied migration not found")

	// ErrIrreversibleMigration is returned when a migration has no down
	// script.
	ErrIrreversibleMigration = errors.New("database: migration has no down script")
)
