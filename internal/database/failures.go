package database

import (
	"fmt"
	"time"
)

// RecordDispatchFailure appends a row to the per-tenant failure registry
// consulted by the autopilot circuit breaker.
func (d *Database) RecordDispatchFailure(tenantID, intent, errorMessage string) error {
	query := `
		INSERT INTO dispatch_failures (tenant_id, intent, error_message, failed_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query), tenantID, intent, sqlNullString(errorMessage), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record dispatch failure: %w", err)
	}
	return nil
}

// CountRecentFailures counts a tenant's dispatch failures within the window.
func (d *Database) CountRecentFailures(tenantID string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM dispatch_failures
		WHERE tenant_id = ? AND failed_at > ?
	`
	var count int
	since := time.Now().UTC().Add(-window)
	if err := d.db.QueryRow(rebind(query), tenantID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}

// PruneFailures deletes failure rows older than the retention period. Run
// from the daily maintenance task.
func (d *Database) PruneFailures(retention time.Duration) (int64, error) {
	query := `DELETE FROM dispatch_failures WHERE failed_at < ?`
	result, err := d.db.Exec(rebind(query), time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune failures: %w", err)
	}
	return result.RowsAffected()
}
