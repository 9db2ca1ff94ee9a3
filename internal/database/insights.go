package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateInsight persists an analytical insight record.
func (d *Database) CreateInsight(insight *models.Insight) error {
	if insight == nil {
		return fmt.Errorf("insight cannot be nil")
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now().UTC()
	}

	recsJSON, err := json.Marshal(insight.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	agentsJSON, err := json.Marshal(insight.AgentsToTrigger)
	if err != nil {
		return fmt.Errorf("failed to marshal agents: %w", err)
	}

	query := `
		INSERT INTO insights (id, tenant_id, source_agent, comment, note, category, severity,
		                      recommendations_json, agents_json, priority_score, duplicate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.Exec(rebind(query),
		insight.ID,
		insight.TenantID,
		insight.SourceAgent,
		insight.Comment,
		sqlNullString(insight.Note),
		insight.Category,
		insight.Severity,
		string(recsJSON),
		string(agentsJSON),
		insight.PriorityScore,
		insight.Duplicate,
		insight.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create insight: %w", err)
	}
	return nil
}

// ListRecentInsights returns a tenant's insights newest first.
func (d *Database) ListRecentInsights(tenantID string, limit int) ([]*models.Insight, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, source_agent, comment, note, category, severity,
		       recommendations_json, agents_json, priority_score, duplicate, created_at
		FROM insights
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := d.db.Query(rebind(query), tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}

// HasRecentSimilarInsight reports whether any of the tenant's last n insights
// shares the first prefixLen characters of comment, case-insensitively.
func (d *Database) HasRecentSimilarInsight(tenantID, comment string, prefixLen, n int) (bool, error) {
	if prefixLen <= 0 {
		prefixLen = 40
	}
	if n <= 0 {
		n = 10
	}

	prefix := comment
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	prefix = strings.ToLower(prefix)

	recent, err := d.ListRecentInsights(tenantID, n)
	if err != nil {
		return false, err
	}
	for _, ins := range recent {
		existing := ins.Comment
		if len(existing) > prefixLen {
			existing = existing[:prefixLen]
		}
		if strings.ToLower(existing) == prefix {
			return true, nil
		}
	}
	return false, nil
}

func scanInsight(row rowScanner) (*models.Insight, error) {
	ins := &models.Insight{}
	var note sql.NullString
	var recsJSON, agentsJSON string

	err := row.Scan(
		&ins.ID,
		&ins.TenantID,
		&ins.SourceAgent,
		&ins.Comment,
		&note,
		&ins.Category,
		&ins.Severity,
		&recsJSON,
		&agentsJSON,
		&ins.PriorityScore,
		&ins.Duplicate,
		&ins.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ins.Note = note.String
	if recsJSON != "" {
		_ = json.Unmarshal([]byte(recsJSON), &ins.Recommendations)
	}
	if agentsJSON != "" {
		_ = json.Unmarshal([]byte(agentsJSON), &ins.AgentsToTrigger)
	}
	return ins, nil
}
