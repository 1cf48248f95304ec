// Package database provides the SQLite-backed command_audit store: a
// record of every press, hold, stop, and health transition the
// dispatcher's telemetry fan-out reports, kept for after-the-fact
// diagnosis rather than served on any request path.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Applying and versioning the command_audit schema
//   - Connection pooling and lifecycle management
//   - The audit Observer that writes dispatcher.Event rows
//   - Bounded retention via PruneOlderThan
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//   - Audit inserts run off the dispatcher's fan-out workers, never
//     on the press critical path
//
// Usage:
//
//	db, err := database.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	dispatcher.New(reg, catalogue, database.NewObserver(db, logger))
//
// Schema:
//
// command_audit has one shape, applied idempotently by Migrate and
// tracked via SQLite's user_version pragma rather than a versioned
// migration file set — there is no history of alterations to replay,
// only the current table definition in schema.go.
package database
