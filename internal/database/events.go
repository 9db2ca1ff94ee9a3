package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateEvent persists a deferred handoff in pending state.
func (d *Database) CreateEvent(event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	paramsJSON, err := marshalMap(event.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal event params: %w", err)
	}

	query := `
		INSERT INTO events (id, tenant_id, trigger, next_agent, params_json, status, created_at, dispatched_at, linked_action_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.Exec(rebind(query),
		event.ID,
		event.TenantID,
		event.Trigger,
		event.NextAgent,
		sqlNullString(paramsJSON),
		string(event.Status),
		event.CreatedAt,
		event.DispatchedAt,
		sqlNullString(event.LinkedActionID),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// ListPendingEvents returns pending events oldest first so the scanner
// drains them in creation order. tenantID may be empty to scan all tenants.
func (d *Database) ListPendingEvents(tenantID string, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, trigger, next_agent, params_json, status, created_at, dispatched_at, linked_action_id
		FROM events
		WHERE status = 'pending'
	`
	args := []any{}
	if tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}
	query += " ORDER BY created_at ASC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ClaimEvent transitions a pending event to dispatched. A claim that affects
// zero rows means another scanner already took it; the caller must skip it.
func (d *Database) ClaimEvent(eventID string) (bool, error) {
	query := `
		UPDATE events
		SET status = 'dispatched', dispatched_at = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := d.db.Exec(rebind(query), time.Now().UTC(), eventID)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// FinishEvent records the terminal status of a dispatched event along with
// the ledger action its dispatch produced.
func (d *Database) FinishEvent(eventID string, status models.EventStatus, linkedActionID string) error {
	if status != models.EventStatusDone && status != models.EventStatusError {
		return fmt.Errorf("invalid terminal event status: %s", status)
	}

	query := `
		UPDATE events
		SET status = ?, linked_action_id = ?
		WHERE id = ? AND status = 'dispatched'
	`
	result, err := d.db.Exec(rebind(query), string(status), sqlNullString(linkedActionID), eventID)
	if err != nil {
		return fmt.Errorf("failed to finish event: %w", err)
	}
	return requireOneRow(result, "event", eventID)
}

// ListEvents returns a tenant's events newest first, optionally filtered by
// status.
func (d *Database) ListEvents(tenantID string, statusFilter models.EventStatus, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, trigger, next_agent, params_json, status, created_at, dispatched_at, linked_action_id
		FROM events
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if statusFilter != "" {
		query += " AND status = ?"
		args = append(args, string(statusFilter))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	e := &models.Event{}
	var status string
	var paramsJSON, linkedID sql.NullString
	var dispatchedAt sql.NullTime

	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Trigger,
		&e.NextAgent,
		&paramsJSON,
		&status,
		&e.CreatedAt,
		&dispatchedAt,
		&linkedID,
	)
	if err != nil {
		return nil, err
	}

	e.Status = models.EventStatus(status)
	if paramsJSON.Valid && paramsJSON.String != "" {
		_ = json.Unmarshal([]byte(paramsJSON.String), &e.Params)
	}
	if dispatchedAt.Valid {
		t := dispatchedAt.Time
		e.DispatchedAt = &t
	}
	e.LinkedActionID = linkedID.String
	return e, nil
}
