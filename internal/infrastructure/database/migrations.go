package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// versionLayout is the timestamp prefix of every migration file:
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql
const versionLayout = "20060102_150405"

// MigrationsFS holds the migration files. The migrations package registers
// its embedded files here; tests substitute their own.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS holding the files.
var MigrationsDir = "."

// Migration is one schema change with its revert script.
type Migration struct {
	// Version is the timestamp prefix, e.g. 20261018_120000.
	Version string

	// Name is the description part of the filename.
	Name string

	Up   string
	Down string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// MigrationStatus compares the schema_migrations table with the migration
// files.
type MigrationStatus struct {
	// Applied lists the recorded migrations, oldest first.
	Applied []MigrationRecord

	// Pending lists the migrations not yet applied, oldest first.
	Pending []Migration

	// Unknown lists recorded versions with no file, which happens when an
	// older binary opens an event log migrated by a newer one.
	Unknown []MigrationRecord
}

// Current returns the newest applied version, or "" for an empty schema.
func (s *MigrationStatus) Current() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Migrate applies all pending migrations, oldest first.
//
// Each migration runs in its own transaction together with its
// schema_migrations row. A failure rolls back that migration only; the ones
// before it stay committed and a later Migrate continues from the failed one.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: The first failing migration, wrapped with its version and name
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		if err := db.runMigration(ctx, m, true); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrationStatus reports applied, pending and unknown migrations. It
// creates the schema_migrations table when missing.
func (db *DB) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	available, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{Applied: applied}
	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
		if !slices.ContainsFunc(available, func(m Migration) bool { return m.Version == r.Version }) {
			status.Unknown = append(status.Unknown, r)
		}
	}
	for _, m := range available {
		if !done[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// Rollback reverts up to steps of the most recently applied migrations,
// newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - steps: Number of migrations to revert, at least 1
//
// Returns:
//   - []Migration: The migrations reverted before any failure
//   - error: ErrInvalidSteps, ErrMigrationMissing, ErrIrreversibleMigration,
//     or the failing revert script
func (db *DB) Rollback(ctx context.Context, steps int) ([]Migration, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	available, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	var reverted []Migration
	for i := len(status.Applied) - 1; i >= 0 && len(reverted) < steps; i-- {
		version := status.Applied[i].Version
		idx := slices.IndexFunc(available, func(m Migration) bool { return m.Version == version })
		if idx < 0 {
			return reverted, fmt.Errorf("%w: %s", ErrMigrationMissing, version)
		}
		m := available[idx]
		if strings.TrimSpace(m.Down) == "" {
			return reverted, fmt.Errorf("%w: %s (%s)", ErrIrreversibleMigration, m.Version, m.Name)
		}
		if err := db.runMigration(ctx, m, false); err != nil {
			return reverted, fmt.Errorf("reverting migration %s (%s): %w", m.Version, m.Name, err)
		}
		reverted = append(reverted, m)
	}
	return reverted, nil
}

// runMigration executes the up or down script of m and its bookkeeping
// statement in one transaction.
func (db *DB) runMigration(ctx context.Context, m Migration, up bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	script := m.Up
	if !up {
		script = m.Down
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if up {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
		)
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
	}
	if err != nil {
		return fmt.Errorf("updating schema_migrations: %w", err)
	}

	return tx.Commit()
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.DB.QueryContext(ctx,
		"SELECT version, name, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &r.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by runMigration
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

// loadMigrations reads MigrationsFS. Files that do not follow the naming
// scheme are ignored, as is a down script without its up script.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFile(entry.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[f.version]
		if m == nil {
			m = &Migration{Version: f.version, Name: f.name}
			byVersion[f.version] = m
		}
		if f.up {
			m.Up = string(data)
		} else {
			m.Down = string(data)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up != "" {
			migrations = append(migrations, *m)
		}
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return migrations, nil
}

type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFile splits "20261018_120000_event_log.up.sql" into its
// version, name and direction.
func parseMigrationFile(filename string) (migrationFile, bool) {
	base, ok := strings.CutSuffix(filename, ".sql")
	if !ok {
		return migrationFile{}, false
	}

	var f migrationFile
	if b, isUp := strings.CutSuffix(base, ".up"); isUp {
		base, f.up = b, true
	} else if b, isDown := strings.CutSuffix(base, ".down"); isDown {
		base = b
	} else {
		return migrationFile{}, false
	}

	if len(base) < len(versionLayout) {
		return migrationFile{}, false
	}
	version := base[:len(versionLayout)]
	if _, err := time.Parse(versionLayout, version); err != nil {
		return migrationFile{}, false
	}
	rest := base[len(versionLayout):]
	if rest != "" && rest[0] != '_' {
		return migrationFile{}, false
	}

	f.version = version
	f.name = strings.TrimPrefix(rest, "_")
	return f, true
}
