package postgresql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/util"
)

type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ConnString prefers the explicit DSN; otherwise it is built from components
// when a host is provided.
func (p Config) ConnString() string {
	dsn, hasDSN := util.TrimEmptyCheck(p.DSN)
	if hasDSN {
		return dsn
	}
	host, hasHost := util.TrimEmptyCheck(p.Host)
	if !hasHost {
		return ""
	}
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	ssl := util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, host, port, p.DBName, ssl,
	)
}

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Placeholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// BoolToStorage converts bool to PostgreSQL storage format (native bool)
func (p *Dialect) BoolToStorage(b bool) any {
	return b
}

// TimeToStorage converts time to PostgreSQL storage format (native time.Time)
func (p *Dialect) TimeToStorage(t time.Time) any {
	return t.UTC()
}

// BoolFromStorage converts PostgreSQL bool storage to bool
func (p *Dialect) BoolFromStorage(val any) bool {
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

// TimeFromStorage converts PostgreSQL timestamptz storage to UTC time
func (p *Dialect) TimeFromStorage(val any) time.Time {
	if t, ok := val.(time.Time); ok {
		return t.UTC()
	}
	return time.Time{}
}

// Connect establishes a connection to PostgreSQL with connection pooling
func (p *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// EnsureStatements returns PostgreSQL-specific table creation statements
func (p *Dialect) EnsureStatements(runs, records string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (run_id TEXT PRIMARY KEY, executed_at TIMESTAMPTZ NOT NULL, total_tasks INTEGER NOT NULL, succeeded INTEGER NOT NULL, failed INTEGER NOT NULL)", runs),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id SERIAL PRIMARY KEY, run_id TEXT NOT NULL REFERENCES %s(run_id) ON DELETE CASCADE, position INTEGER NOT NULL, config_name TEXT NOT NULL, method TEXT NOT NULL, path TEXT NOT NULL, executed_at TIMESTAMPTZ NOT NULL, success BOOLEAN NOT NULL DEFAULT FALSE, status_code INTEGER NULL, response_size INTEGER NOT NULL DEFAULT 0, error TEXT NULL, duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0)", records, runs),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_run_idx ON %s (run_id, position)", records, records),
	}
}

// DriverName returns the driver name for logging
func (p *Dialect) DriverName() string {
	return "postgresql"
}
