package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hollowgate/irfleet-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the fields irfleetd attaches to every
// line (service, version) and helpers for the ones a subsystem or a
// single slot's press attaches on top of that. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml: output
// destination, level, and JSON vs. text format.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "irfleetd"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a config-file level name to slog.Level,
// defaulting to info for anything unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithSite tags every subsequent line with the site identifier from
// config.yaml, so an aggregator collecting logs from several irfleetd
// instances can tell them apart.
func (l *Logger) WithSite(siteID string) *Logger {
	if siteID == "" {
		return l
	}
	return l.With("site", siteID)
}

// WithComponent tags lines from one collaborator (mqtt, metrics,
// audit) so they can be filtered without a dedicated logger type per
// package.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithSlot tags lines belonging to a single fleet slot's press, hold,
// or stop, matching the slot field the command_audit store and the
// MQTT telemetry topics key on.
func (l *Logger) WithSlot(slot int) *Logger {
	return l.With("slot", slot)
}

// Default returns a JSON, info-level logger writing to stdout, for use
// during startup before config.yaml has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
