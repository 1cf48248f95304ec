package database

import (
	"context"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever commandAuditSchema's shape changes.
// It is recorded via SQLite's user_version pragma rather than a
// bespoke migrations table: this store has exactly one table and no
// history of incremental alterations worth replaying file-by-file.
const schemaVersion = 1

// commandAuditSchema creates the command_audit table the Dispatcher's
// telemetry Observer writes to: one row per press, hold, stop, or
// health transition, keyed loosely enough (slot/module/port rather
// than a foreign key) that rows outlive registry reconfiguration.
const commandAuditSchema = `
CREATE TABLE IF NOT EXISTS command_audit (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT    NOT NULL,
	slot           INTEGER NOT NULL,
	module         INTEGER NOT NULL,
	port           INTEGER NOT NULL,
	device_name    TEXT    NOT NULL DEFAULT '',
	key_name       TEXT    NOT NULL DEFAULT '',
	kind           TEXT    NOT NULL,
	status         TEXT    NOT NULL,
	error          TEXT    NOT NULL DEFAULT '',
	elapsed_ms     INTEGER NOT NULL DEFAULT 0,
	occurred_at    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_command_audit_slot ON command_audit (slot, occurred_at);
CREATE INDEX IF NOT EXISTS idx_command_audit_occurred_at ON command_audit (occurred_at);
`

// Migrate ensures the command_audit schema exists. It is idempotent
// and cheap enough to run unconditionally on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.DB.ExecContext(ctx, commandAuditSchema); err != nil {
		return fmt.Errorf("applying command_audit schema: %w", err)
	}
	if _, err := db.DB.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the database
// file, for startup logging and diagnostics.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// PruneOlderThan deletes command_audit rows recorded before cutoff and
// reports how many were removed. A fleet pressed continuously grows
// this table without bound; this gives a scheduled job or an operator
// a way to cap it.
func (db *DB) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.DB.ExecContext(ctx,
		"DELETE FROM command_audit WHERE occurred_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning command_audit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}
