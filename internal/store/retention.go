package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CleanupResult tallies rows removed per table, mirroring
// original_source's cleanup_old_records return dict.
type CleanupResult struct {
	ComponentHistory int64
	Violations       int64
	Alerts           int64
	Tickets          int64
	SystemState      int64
}

// Cleanup deletes records older than daysToKeep across the Durable
// Store's retained-history tables (spec.md §4.8's retention policy),
// grounded on original_source's DatabaseManager.cleanup_old_records.
// scheduler_runs retention is handled separately by pkg/runlog.Retention
// since that table is owned by the Run Logger.
func Cleanup(ctx context.Context, pool *pgxpool.Pool, daysToKeep int) (CleanupResult, error) {
	if daysToKeep <= 0 {
		daysToKeep = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	var r CleanupResult
	var err error

	if r.ComponentHistory, err = exec1(ctx, pool, `DELETE FROM component_status_history WHERE recorded_at < $1`, cutoff); err != nil {
		return r, fmt.Errorf("cleaning up component history: %w", err)
	}
	if r.Violations, err = exec1(ctx, pool, `DELETE FROM violations WHERE resolved = true AND end_time < $1`, cutoff); err != nil {
		return r, fmt.Errorf("cleaning up resolved violations: %w", err)
	}
	if r.Alerts, err = exec1(ctx, pool, `DELETE FROM alerts WHERE resolved_at IS NOT NULL AND resolved_at < $1`, cutoff); err != nil {
		return r, fmt.Errorf("cleaning up resolved alerts: %w", err)
	}
	if r.Tickets, err = exec1(ctx, pool, `DELETE FROM tickets WHERE lifecycle_state IN ('resolved', 'closed') AND updated_at < $1`, cutoff); err != nil {
		return r, fmt.Errorf("cleaning up resolved tickets: %w", err)
	}
	// system_version and installation_date are retained regardless of age,
	// per spec.md §4.8.
	if r.SystemState, err = exec1(ctx, pool, `
		DELETE FROM system_state WHERE updated_at < $1 AND key NOT IN ('system_version', 'installation_date')
	`, cutoff); err != nil {
		return r, fmt.Errorf("cleaning up system state: %w", err)
	}

	return r, nil
}

func exec1(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) (int64, error) {
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
