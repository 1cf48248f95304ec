package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgate/irfleet-core/internal/dispatcher"
)

// Logger is the subset of *slog.Logger the audit Observer needs to
// report write failures without depending on the logging package.
type Logger interface {
	Warn(msg string, args ...any)
}

// Observer persists dispatcher.Event telemetry into command_audit. It
// satisfies dispatcher.Observer.
type Observer struct {
	db     *DB
	logger Logger
}

// NewObserver wraps an open DB as a dispatcher.Observer.
func NewObserver(db *DB, logger Logger) *Observer {
	return &Observer{db: db, logger: logger}
}

// Observe implements dispatcher.Observer.
func (o *Observer) Observe(ev dispatcher.Event) {
	entry := AuditEntry{
		CorrelationID: uuid.NewString(),
		Slot:          ev.Slot,
		Module:        ev.Address.Module,
		Port:          ev.Address.Port,
		DeviceName:    ev.DeviceName,
		KeyName:       ev.KeyName,
		Kind:          auditKind(ev),
		Status:        ev.Outcome,
		ElapsedMs:     ev.ElapsedMs,
		OccurredAt:    ev.At,
	}
	if ev.Err != nil {
		entry.Error = ev.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := o.db.RecordAudit(ctx, entry); err != nil && o.logger != nil {
		o.logger.Warn("audit insert failed", "error", err)
	}
}

// auditKind maps an Event to the command_audit kind column: "health"
// for a health transition, otherwise whichever Dispatcher operation
// (press/hold/stop) produced it.
func auditKind(ev dispatcher.Event) string {
	if ev.Kind == dispatcher.EventHealthTransition {
		return "health"
	}
	if ev.Operation != "" {
		return string(ev.Operation)
	}
	return "press"
}
