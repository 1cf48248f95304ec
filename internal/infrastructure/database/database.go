package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/hollowgate/irfleet-core/internal/infrastructure/config"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
	msPerSecond     = 1000

	connectionTimeout = 5 * time.Second
	connMaxIdleTime   = 30 * time.Minute
)

// DB is the command_audit store: a single-writer SQLite connection
// that the Dispatcher's telemetry Observer appends press/hold/stop and
// health-transition rows to. One row per event, no reads on the
// dispatch path — Open tunes the connection pool accordingly.
type DB struct {
	*sql.DB
	path string
}

// Config are the settings Open needs; ConfigFromAudit builds one from
// the audit section of config.yaml.
type Config struct {
	Path        string
	WALMode     bool
	BusyTimeout int // seconds
}

// ConfigFromAudit adapts the daemon's audit configuration section into
// the Config Open expects.
func ConfigFromAudit(cfg config.AuditConfig) Config {
	return Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	}
}

// Open connects to the command_audit database file, creating its
// parent directory and the file itself if necessary, and verifies the
// connection with a ping before returning. It does not run Migrate —
// callers do that explicitly once, at startup.
func Open(cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating audit database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// A single writer serialises command_audit inserts; SQLite doesn't
	// benefit from a larger pool here.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying audit database connection: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write

	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing audit database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck reports whether the audit database is reachable by
// running SELECT 1 against it.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("audit database health check failed: %w", err)
	}
	return nil
}

// Stats returns the underlying connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
