// Package database opens the SQLite event log and manages its schema.
//
// The eventlog package owns the queries; this package owns the file: its
// location and permissions (0600), the WAL journal, checkpoints after a
// prune, and the timestamped migrations registered by the migrations
// package.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//	repo := eventlog.NewSQLiteRepository(db.DB)
//
// # Migrations
//
// Files are named YYYYMMDD_HHMMSS_name.up.sql with an optional matching
// .down.sql. MigrationStatus compares them with schema_migrations and
// Rollback reverts the newest ones; upnpd -migrate exposes both. A version
// recorded in the event log but unknown to the binary stops the daemon
// instead of running against a schema it does not understand.
package database
