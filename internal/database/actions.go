package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateAction inserts a new ledger row. The dispatcher calls this with
// status=pending before any handler logic runs.
func (d *Database) CreateAction(action *models.Action) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}
	if action.StartedAt.IsZero() {
		action.StartedAt = time.Now().UTC()
	}

	inputJSON, err := marshalMap(action.InputContext)
	if err != nil {
		return fmt.Errorf("failed to marshal input context: %w", err)
	}
	outputJSON, err := marshalMap(action.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		INSERT INTO actions (id, tenant_id, intent, status, started_at, completed_at, input_context_json, output_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.Exec(rebind(query),
		action.ID,
		action.TenantID,
		action.Intent,
		string(action.Status),
		action.StartedAt,
		action.CompletedAt,
		sqlNullString(inputJSON),
		sqlNullString(outputJSON),
		sqlNullString(action.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

// CompleteAction marks a pending action completed and stores the handler
// output. The WHERE clause guards the single-terminal-transition invariant.
func (d *Database) CompleteAction(actionID string, output map[string]any) error {
	outputJSON, err := marshalMap(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		UPDATE actions
		SET status = 'completed', completed_at = ?, output_json = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := d.db.Exec(rebind(query), time.Now().UTC(), sqlNullString(outputJSON), actionID)
	if err != nil {
		return fmt.Errorf("failed to complete action: %w", err)
	}
	return requireOneRow(result, "action", actionID)
}

// FailAction marks a pending action errored with the given message.
func (d *Database) FailAction(actionID string, message string) error {
	query := `
		UPDATE actions
		SET status = 'error', completed_at = ?, error = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := d.db.Exec(rebind(query), time.Now().UTC(), message, actionID)
	if err != nil {
		return fmt.Errorf("failed to fail action: %w", err)
	}
	return requireOneRow(result, "action", actionID)
}

// GetAction retrieves a single ledger row.
func (d *Database) GetAction(actionID string) (*models.Action, error) {
	query := `
		SELECT id, tenant_id, intent, status, started_at, completed_at, input_context_json, output_json, error
		FROM actions
		WHERE id = ?
	`
	row := d.db.QueryRow(rebind(query), actionID)
	action, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action not found: %s", actionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return action, nil
}

// ListRecentActions returns a tenant's most recent actions, newest first.
// statusFilter may be empty to include all statuses. Completed actions are
// ordered by completion time so memory merges see the freshest outputs.
func (d *Database) ListRecentActions(tenantID string, statusFilter models.ActionStatus, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, intent, status, started_at, completed_at, input_context_json, output_json, error
		FROM actions
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if statusFilter != "" {
		query += " AND status = ?"
		args = append(args, string(statusFilter))
	}
	if statusFilter == models.ActionStatusCompleted {
		query += " ORDER BY completed_at DESC"
	} else {
		query += " ORDER BY started_at DESC"
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*models.Action, error) {
	a := &models.Action{}
	var status string
	var completedAt sql.NullTime
	var inputJSON, outputJSON, errMsg sql.NullString

	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Intent,
		&status,
		&a.StartedAt,
		&completedAt,
		&inputJSON,
		&outputJSON,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.ActionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if inputJSON.Valid && inputJSON.String != "" {
		_ = json.Unmarshal([]byte(inputJSON.String), &a.InputContext)
	}
	if outputJSON.Valid && outputJSON.String != "" {
		_ = json.Unmarshal([]byte(outputJSON.String), &a.Output)
	}
	a.Error = errMsg.String
	return a, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func requireOneRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found or already terminal: %s", entity, id)
	}
	return nil
}
