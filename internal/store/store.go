package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/store/postgresql"
	"github.com/loykin/apiload/internal/store/sqlite"
	"github.com/loykin/apiload/internal/util"
)

// Store drivers
const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config selects the archive backend.
type Config struct {
	Type        string            `mapstructure:"type" yaml:"type"`
	SQLite      sqlite.Config     `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres    postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
	TablePrefix string            `mapstructure:"table_prefix" yaml:"table_prefix"`
}

// TableNames are the archive tables.
type TableNames struct {
	Runs    string
	Records string
}

// Tables derives table names from TablePrefix.
func (c Config) Tables() (TableNames, error) {
	prefix, ok := util.TrimEmptyCheck(c.TablePrefix)
	if !ok {
		return TableNames{Runs: constants.DefaultRunsTable, Records: constants.DefaultRecordsTable}, nil
	}
	if !identifier.MatchString(prefix) {
		return TableNames{}, fmt.Errorf("invalid table_prefix %q", prefix)
	}
	return TableNames{Runs: prefix + constants.RunsSuffix, Records: prefix + constants.RecordsSuffix}, nil
}

// Driver normalizes Type; an empty type means sqlite.
func (c Config) Driver() (string, error) {
	switch util.TrimAndLower(c.Type) {
	case "", "sqlite", "sqlite3":
		return DriverSqlite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgresql, nil
	default:
		return "", fmt.Errorf("unsupported store type %q", c.Type)
	}
}

// Dialect hides the SQL differences between backends.
type Dialect interface {
	Placeholder(index int) string
	BoolToStorage(b bool) any
	TimeToStorage(t time.Time) any
	BoolFromStorage(val any) bool
	TimeFromStorage(val any) time.Time
	Connect(dsn string) (*sql.DB, error)
	EnsureStatements(runs, records string) []string
	DriverName() string
}

// Run is the archived summary of one batch.
type Run struct {
	RunID      string    `json:"run_id"`
	ExecutedAt time.Time `json:"executed_at"`
	TotalTasks int       `json:"total_tasks"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Store archives run reports.
type Store struct {
	db      *sql.DB
	dialect Dialect
	tables  TableNames
	logger  *common.Logger
}

// Open connects to the configured backend and creates the tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}
	tables, err := cfg.Tables()
	if err != nil {
		return nil, err
	}
	var (
		dialect Dialect
		dsn     string
	)
	switch driver {
	case DriverPostgresql:
		dialect = postgresql.NewDialect()
		dsn = cfg.Postgres.ConnString()
		if dsn == "" {
			return nil, errors.New("postgres store requires dsn or host")
		}
	default:
		dialect = sqlite.NewDialect()
		dsn = cfg.SQLite.DSN()
	}
	db, err := dialect.Connect(dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: dialect, tables: tables, logger: common.GetLogger().WithStore(dialect.DriverName())}
	if err := s.ensure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info("report store ready", "runs_table", tables.Runs, "records_table", tables.Records)
	return s, nil
}

func (s *Store) ensure(ctx context.Context) error {
	for _, stmt := range s.dialect.EnsureStatements(s.tables.Runs, s.tables.Records) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Tables returns the table names in use.
func (s *Store) Tables() TableNames { return s.tables }

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

// SaveReport writes the run and its records in one transaction.
func (s *Store) SaveReport(ctx context.Context, r *engine.Report) (err error) {
	if r == nil || r.RunID == "" {
		return errors.New("report has no run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	runSQL := fmt.Sprintf("INSERT INTO %s (run_id, executed_at, total_tasks, succeeded, failed) VALUES (%s)", s.tables.Runs, s.placeholders(5))
	if _, err = tx.ExecContext(ctx, runSQL, r.RunID, s.dialect.TimeToStorage(r.ExecutedAt), r.TotalTasks, r.Summary.Succeeded, r.Summary.Failed); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	recSQL := fmt.Sprintf("INSERT INTO %s (run_id, position, config_name, method, path, executed_at, success, status_code, response_size, error, duration_ms) VALUES (%s)", s.tables.Records, s.placeholders(11))
	for i, rec := range r.Results {
		status := sql.NullInt64{Int64: int64(rec.StatusCode), Valid: rec.Success}
		msg := sql.NullString{String: rec.Error, Valid: rec.Error != ""}
		if _, err = tx.ExecContext(ctx, recSQL,
			r.RunID, i, rec.ConfigName, rec.Method, rec.Path, s.dialect.TimeToStorage(rec.ExecutedAt),
			s.dialect.BoolToStorage(rec.Success), status, rec.ResponseSize, msg, rec.DurationMS,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("report archived", "run_id", r.RunID, "records", len(r.Results))
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := fmt.Sprintf("SELECT run_id, executed_at, total_tasks, succeeded, failed FROM %s ORDER BY executed_at DESC, run_id", s.tables.Runs)
	var args []any
	if limit > 0 {
		q += " LIMIT " + s.dialect.Placeholder(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun returns one run summary or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	q := fmt.Sprintf("SELECT run_id, executed_at, total_tasks, succeeded, failed FROM %s WHERE run_id = %s", s.tables.Runs, s.dialect.Placeholder(1))
	run, err := s.scanRun(s.db.QueryRowContext(ctx, q, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row scanner) (Run, error) {
	var (
		run Run
		at  any
	)
	if err := row.Scan(&run.RunID, &at, &run.TotalTasks, &run.Succeeded, &run.Failed); err != nil {
		return Run{}, err
	}
	run.ExecutedAt = s.dialect.TimeFromStorage(at)
	return run, nil
}

// LoadRecords returns the records of a run in execution order.
func (s *Store) LoadRecords(ctx context.Context, runID string) ([]engine.ResultRecord, error) {
	q := fmt.Sprintf("SELECT config_name, method, path, executed_at, success, status_code, response_size, error, duration_ms FROM %s WHERE run_id = %s ORDER BY position", s.tables.Records, s.dialect.Placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []engine.ResultRecord
	for rows.Next() {
		var (
			rec     engine.ResultRecord
			at, ok  any
			status  sql.NullInt64
			message sql.NullString
		)
		if err := rows.Scan(&rec.ConfigName, &rec.Method, &rec.Path, &at, &ok, &status, &rec.ResponseSize, &message, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.ExecutedAt = s.dialect.TimeFromStorage(at)
		rec.Success = s.dialect.BoolFromStorage(ok)
		rec.StatusCode = int(status.Int64)
		rec.Error = message.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	for _, table := range []string{s.tables.Records, s.tables.Runs} {
		q := fmt.Sprintf("DELETE FROM %s WHERE run_id = %s", table, s.dialect.Placeholder(1))
		if _, err := s.db.ExecContext(ctx, q, runID); err != nil {
			return err
		}
	}
	return nil
}

// Sink archives every completed batch. Failures are logged and never
// propagate to the run.
func Sink(st *Store, logger *common.Logger) engine.EventSink {
	logger = common.OrDefault(logger).WithComponent("archive")
	return engine.SinkFuncs{
		OnBatchCompleted: func(r *engine.Report) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := st.SaveReport(ctx, r); err != nil {
				logger.Error("failed to archive report", "run_id", r.RunID, "error", err)
				return
			}
			logger.Info("report archived", "run_id", r.RunID, "records", len(r.Results))
		},
	}
}
