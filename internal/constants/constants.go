package constants

import "time"

// HTTP defaults
const (
	DefaultRequestTimeout = 30 * time.Second
	ContentTypeJSON       = "application/json"
	ContentTypeText       = "text/plain"
	DefaultAuthScheme     = "Bearer"
)

// Database Constants
const (
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	DefaultPostgresMaxConnections = 10
	DefaultPostgresMaxIdleConns   = 2
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	DefaultSQLitePath = "apiload.db"

	// Default table names
	DefaultRunsTable    = "apiload_runs"
	DefaultRecordsTable = "apiload_run_records"

	// Table name suffixes when using prefixes
	RunsSuffix    = "_runs"
	RecordsSuffix = "_run_records"
)

// Connection pool lifetimes
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// Template built-ins
const (
	VarTimestamp     = "timestamp"
	VarUnixTimestamp = "unix_timestamp"
)
