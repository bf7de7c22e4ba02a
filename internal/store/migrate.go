// Package store implements the Durable Store's migration protocol and
// retention policy (spec.md §4.8), on top of internal/platform's
// golang-migrate wiring and internal/db's query layer.
package store

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies every pending migration, preceded by a backup and
// followed by a table check; a failed check aborts startup. The backup is
// taken only when backupDir is non-empty; with an empty backupDir (the
// default) migrations run without one. The post-migration check confirms
// that every table in expectedTables exists; it does not compare the
// applied migration version with the newest migration file.
//
// original_source's DatabaseMigrationManager backs up a single sqlite
// file before migrating; translated to Postgres this is a pg_dump of the
// schema being migrated, following the teacher's internal/platform/
// migrate.go golang-migrate wiring for the migration step itself.
func Migrate(ctx context.Context, pool *pgxpool.Pool, databaseURL, migrationsDir, backupDir string) error {
	backupPath, err := backup(ctx, databaseURL, backupDir)
	if err != nil {
		return fmt.Errorf("pre-migration backup: %w", err)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsDir), databaseURL)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations (backup at %s): %w", backupPath, err)
	}

	if err := validate(ctx, pool); err != nil {
		return fmt.Errorf("post-migration validation failed (backup at %s): %w", backupPath, err)
	}

	return nil
}

// expectedTables is the minimal set spec.md §4.8 names. Component history
// is a supplemented table beyond the ones the monitoring core's own
// packages query directly.
var expectedTables = []string{
	"violations",
	"alerts",
	"tickets",
	"ticket_alerts",
	"approval_requests",
	"scheduler_runs",
	"scheduler_vessel_results",
	"component_status_history",
	"system_state",
	"schema_migrations",
}

func validate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range expectedTables {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1
		)`, table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("expected table %s missing after migration", table)
		}
	}
	return nil
}

// backup shells out to pg_dump, matching the teacher's process-exec-free
// style as closely as Postgres allows: there is no single data file to
// copy the way original_source copies its SQLite file, so a schema-only
// dump stands in for it.
func backup(ctx context.Context, databaseURL, backupDir string) (string, error) {
	if backupDir == "" {
		return "", nil
	}
	path := fmt.Sprintf("%s/backup-%s.sql", backupDir, time.Now().UTC().Format("20060102_150405"))
	cmd := exec.CommandContext(ctx, "pg_dump", "--schema-only", "-f", path, databaseURL)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running pg_dump: %w", err)
	}
	return path, nil
}
