package database

import (
	"context"
	"time"
)

// AuditEntry is one row of the command_audit table: a record of a
// press, hold, or stop outcome correlated with the slot and device
// addressing that produced it.
type AuditEntry struct {
	CorrelationID string
	Slot          int
	Module        int
	Port          int
	DeviceName    string
	KeyName       string
	Kind          string // "press" | "hold" | "stop" | "health"
	Status        string // "ok" | "error"
	Error         string
	ElapsedMs     int64
	OccurredAt    time.Time
}

// RecordAudit inserts one AuditEntry into command_audit.
//
// This is called from the audit Observer, which is on the dispatcher's
// best-effort telemetry fan-out path — a slow or failing insert never
// blocks a press, and its error is only logged, never returned past
// the Observe call.
func (db *DB) RecordAudit(ctx context.Context, e AuditEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO command_audit (
			correlation_id, slot, module, port, device_name, key_name,
			kind, status, error, elapsed_ms, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.CorrelationID, e.Slot, e.Module, e.Port, e.DeviceName, e.KeyName,
		e.Kind, e.Status, e.Error, e.ElapsedMs, e.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
