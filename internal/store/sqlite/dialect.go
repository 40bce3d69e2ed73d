package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/util"

	_ "modernc.org/sqlite"
)

// SQLite connection pragmas
const (
	busyTimeoutMS = 5000
	foreignKeys   = "foreign_keys(1)"
)

// Config locates the database file.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DSN returns the modernc connection string for Path, defaulting to apiload.db.
func (c Config) DSN() string {
	path := util.TrimWithDefault(c.Path, constants.DefaultSQLitePath)
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=%s", path, busyTimeoutMS, foreignKeys)
}

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Placeholder returns SQLite-style placeholders (?)
func (s *Dialect) Placeholder(int) string {
	return "?"
}

// BoolToStorage converts bool to SQLite storage format (integer 0/1)
func (s *Dialect) BoolToStorage(b bool) any {
	if b {
		return 1
	}
	return 0
}

// TimeToStorage converts time to SQLite storage format (RFC3339Nano string)
func (s *Dialect) TimeToStorage(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

// BoolFromStorage converts SQLite integer storage to bool
func (s *Dialect) BoolFromStorage(val any) bool {
	switch v := val.(type) {
	case int64:
		return v != 0
	case int:
		return v != 0
	case bool:
		return v
	}
	return false
}

// TimeFromStorage parses SQLite text storage
func (s *Dialect) TimeFromStorage(val any) time.Time {
	switch v := val.(type) {
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	case []byte:
		t, _ := time.Parse(time.RFC3339Nano, string(v))
		return t
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}

// Connect establishes a connection to SQLite with connection pooling
func (s *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return db, nil
}

// EnsureStatements returns SQLite-specific table creation statements
func (s *Dialect) EnsureStatements(runs, records string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (run_id TEXT PRIMARY KEY, executed_at TEXT NOT NULL, total_tasks INTEGER NOT NULL, succeeded INTEGER NOT NULL, failed INTEGER NOT NULL)", runs),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, run_id TEXT NOT NULL REFERENCES %s(run_id) ON DELETE CASCADE, position INTEGER NOT NULL, config_name TEXT NOT NULL, method TEXT NOT NULL, path TEXT NOT NULL, executed_at TEXT NOT NULL, success INTEGER NOT NULL DEFAULT 0, status_code INTEGER NULL, response_size INTEGER NOT NULL DEFAULT 0, error TEXT NULL, duration_ms REAL NOT NULL DEFAULT 0)", records, runs),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_run_idx ON %s (run_id, position)", records, records),
	}
}

// DriverName returns the driver name for logging
func (s *Dialect) DriverName() string {
	return "sqlite"
}
