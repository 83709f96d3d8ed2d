package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
)

// DB is the event log database. The embedded *sql.DB is handed to the
// eventlog repository; DB itself adds schema management, WAL checkpoints
// and size reporting.
type DB struct {
	*sql.DB
	path string
}

// Config maps the database section of config.yaml.
type Config struct {
	// Path of the SQLite file. Missing parent directories are created.
	Path string

	// WALMode lets the API read the event log while the bridge appends.
	WALMode bool

	// BusyTimeout in seconds before a locked write fails.
	BusyTimeout int
}

// dsn builds the go-sqlite3 connection string.
func (cfg Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open opens or creates the event log at cfg.Path.
//
// The pool is limited to one connection: SQLite has a single writer and
// the event log is written far more often than it is read.
//
// Parameters:
//   - ctx: Bounds the connectivity check
//   - cfg: Database settings
//
// Returns:
//   - *DB: Open database, not yet migrated
//   - error: If the directory cannot be created or the file cannot be opened
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("opening event log %s: %w", cfg.Path, err)
	}

	if err := os.Chmod(cfg.Path, filePermissions); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sqlDB.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("restricting event log permissions: %w", err)
	}

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close closes the pool. Closing a zero DB is a no-op.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// Path returns the event log file path.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// Checkpoint copies the WAL into the main file and truncates it, so rows
// removed by a prune release their disk space. Without WAL mode there is
// nothing to copy and it succeeds immediately.
//
// Returns:
//   - error: ErrCheckpointBusy when a reader kept the WAL from being reset
func (db *DB) Checkpoint(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if busy != 0 {
		return ErrCheckpointBusy
	}
	return nil
}

// Size returns the bytes the event log occupies on disk, counting the WAL
// file when there is one.
func (db *DB) Size() (int64, error) {
	var total int64
	for _, name := range []string{db.path, db.path + "-wal"} {
		info, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("event log size: %w", err)
		}
		total += info.Size()
	}
	return total, nil
}
