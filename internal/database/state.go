package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// GetTenantState returns the tenant's context singleton. A missing row yields
// the documented defaults, which are persisted so subsequent reads and writes
// operate on a real record.
func (d *Database) GetTenantState(tenantID string) (*models.TenantState, error) {
	query := `
		SELECT tenant_id, occupancy_rate, season, pending_tasks_json, last_action,
		       ai_mode, current_guest_json, negative_feedback_30d, updated_at
		FROM tenant_state
		WHERE tenant_id = ?
	`
	row := d.db.QueryRow(rebind(query), tenantID)

	state := &models.TenantState{}
	var tasksJSON, lastAction, guestJSON sql.NullString
	err := row.Scan(
		&state.TenantID,
		&state.OccupancyRate,
		&state.Season,
		&tasksJSON,
		&lastAction,
		&state.AIMode,
		&guestJSON,
		&state.NegativeFeedback30,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		defaults := models.DefaultTenantState(tenantID)
		if err := d.putTenantState(defaults); err != nil {
			return nil, fmt.Errorf("failed to persist default state: %w", err)
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant state: %w", err)
	}

	state.PendingTasks = []string{}
	if tasksJSON.Valid && tasksJSON.String != "" {
		_ = json.Unmarshal([]byte(tasksJSON.String), &state.PendingTasks)
	}
	state.LastAction = lastAction.String
	if guestJSON.Valid && guestJSON.String != "" {
		guest := &models.Guest{}
		if json.Unmarshal([]byte(guestJSON.String), guest) == nil {
			state.CurrentGuest = guest
		}
	}
	return state, nil
}

// UpdateTenantState merges the given fields into the tenant's state. Fields
// absent from updates are left untouched. Unknown keys are ignored.
func (d *Database) UpdateTenantState(tenantID string, updates map[string]any) (*models.TenantState, error) {
	state, err := d.GetTenantState(tenantID)
	if err != nil {
		return nil, err
	}

	applyStateUpdates(state, updates)
	state.UpdatedAt = time.Now().UTC()

	if err := d.putTenantState(state); err != nil {
		return nil, fmt.Errorf("failed to update tenant state: %w", err)
	}
	return state, nil
}

// ListTenantIDs returns every tenant with persisted state. Used by the
// scheduler to fan daily jobs out.
func (d *Database) ListTenantIDs() ([]string, error) {
	rows, err := d.db.Query(`SELECT tenant_id FROM tenant_state ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// SetLastAction records the most recent intent without touching other fields.
func (d *Database) SetLastAction(tenantID, intent string) error {
	_, err := d.UpdateTenantState(tenantID, map[string]any{"last_action": intent})
	return err
}

func applyStateUpdates(state *models.TenantState, updates map[string]any) {
	for key, raw := range updates {
		switch key {
		case "occupancy_rate":
			if v, ok := asInt(raw); ok {
				state.OccupancyRate = v
			}
		case "season":
			if v, ok := raw.(string); ok {
				state.Season = v
			}
		case "pending_tasks":
			state.PendingTasks = asStringSlice(raw)
		case "last_action":
			if v, ok := raw.(string); ok {
				state.LastAction = v
			}
		case "ai_mode":
			if v, ok := raw.(string); ok && (v == models.AIModeAssist || v == models.AIModeAggressive) {
				state.AIMode = v
			}
		case "current_guest":
			state.CurrentGuest = asGuest(raw)
		case "negative_feedback_30d":
			if v, ok := asInt(raw); ok {
				state.NegativeFeedback30 = v
			}
		}
	}
}

func (d *Database) putTenantState(state *models.TenantState) error {
	tasksJSON, err := json.Marshal(state.PendingTasks)
	if err != nil {
		return fmt.Errorf("failed to marshal pending tasks: %w", err)
	}

	var guestJSON string
	if state.CurrentGuest != nil {
		b, err := json.Marshal(state.CurrentGuest)
		if err != nil {
			return fmt.Errorf("failed to marshal guest: %w", err)
		}
		guestJSON = string(b)
	}

	query := `
		INSERT INTO tenant_state (tenant_id, occupancy_rate, season, pending_tasks_json, last_action,
		                          ai_mode, current_guest_json, negative_feedback_30d, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			occupancy_rate = EXCLUDED.occupancy_rate,
			season = EXCLUDED.season,
			pending_tasks_json = EXCLUDED.pending_tasks_json,
			last_action = EXCLUDED.last_action,
			ai_mode = EXCLUDED.ai_mode,
			current_guest_json = EXCLUDED.current_guest_json,
			negative_feedback_30d = EXCLUDED.negative_feedback_30d,
			updated_at = EXCLUDED.updated_at
	`
	_, err = d.db.Exec(rebind(query),
		state.TenantID,
		state.OccupancyRate,
		state.Season,
		string(tasksJSON),
		sqlNullString(state.LastAction),
		state.AIMode,
		sqlNullString(guestJSON),
		state.NegativeFeedback30,
		state.UpdatedAt,
	)
	return err
}

// asInt accepts the numeric shapes JSON decoding produces.
func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

func asStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func asGuest(raw any) *models.Guest {
	switch v := raw.(type) {
	case *models.Guest:
		return v
	case models.Guest:
		return &v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		guest := &models.Guest{}
		if json.Unmarshal(b, guest) != nil {
			return nil
		}
		return guest
	}
	return nil
}
