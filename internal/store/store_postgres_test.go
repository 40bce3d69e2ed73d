package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/apiload/internal/store/postgresql"
)

// waitForPostgresDSN pings the DSN until it responds or timeout elapses (pgx stdlib).
func waitForPostgresDSN(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			pingErr := db.Ping()
			_ = db.Close()
			if pingErr == nil {
				return nil
			}
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for postgres")
	}
	return lastErr
}

// Integration test with PostgreSQL via testcontainers
func TestPostgresStore_Archive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "apiload_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		// Skip on CI envs that cannot run containers, rather than failing whole suite
		t.Skipf("skipping Postgres container test: %v", err)
		return
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	cfg := postgresql.Config{Host: host, Port: port.Int(), User: "test", Password: "test", DBName: "apiload_test"}
	if err := waitForPostgresDSN(cfg.ConnString(), 30*time.Second); err != nil {
		t.Fatalf("postgres not ready: %v", err)
	}

	st, err := Open(ctx, Config{Type: "postgres", Postgres: cfg, TablePrefix: "ci"})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer func() { _ = st.Close() }()

	for _, tbl := range []string{"ci_runs", "ci_run_records"} {
		row := st.DB().QueryRowContext(ctx, `SELECT 1 FROM information_schema.tables WHERE table_name = $1`, tbl)
		var one int
		if err := row.Scan(&one); err != nil {
			t.Fatalf("expected table %s to exist: %v", tbl, err)
		}
	}

	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := st.SaveReport(ctx, sampleReport("pg-run", at)); err != nil {
		t.Fatalf("save: %v", err)
	}
	runs, err := st.ListRuns(ctx, 10)
	if err != nil || len(runs) != 1 || !runs[0].ExecutedAt.Equal(at) {
		t.Fatalf("runs = %+v, err = %v", runs, err)
	}
	recs, err := st.LoadRecords(ctx, "pg-run")
	if err != nil || len(recs) != 2 || !recs[0].Success || recs[1].Success || recs[1].Error == "" {
		t.Fatalf("records = %+v, err = %v", recs, err)
	}
}
