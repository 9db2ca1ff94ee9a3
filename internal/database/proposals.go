package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateProposal persists a pending suggestion awaiting user confirmation.
func (d *Database) CreateProposal(proposal *models.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("proposal cannot be nil")
	}
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusWaiting
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}

	contextJSON, err := marshalMap(proposal.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal context: %w", err)
	}

	query := `
		INSERT INTO proposals (id, tenant_id, intent, context_json, status, suggestion_text, created_at, handled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.Exec(rebind(query),
		proposal.ID,
		proposal.TenantID,
		proposal.Intent,
		sqlNullString(contextJSON),
		string(proposal.Status),
		sqlNullString(proposal.SuggestionText),
		proposal.CreatedAt,
		proposal.HandledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a single proposal by ID.
func (d *Database) GetProposal(proposalID string) (*models.Proposal, error) {
	query := `
		SELECT id, tenant_id, intent, context_json, status, suggestion_text, created_at, handled_at
		FROM proposals
		WHERE id = ?
	`
	row := d.db.QueryRow(rebind(query), proposalID)
	proposal, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proposal not found: %s", proposalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

// ResolveProposal transitions a waiting proposal to accepted or rejected.
// The WHERE clause makes double-resolution impossible: the second call
// affects zero rows and returns an error.
func (d *Database) ResolveProposal(proposalID string, status models.ProposalStatus) (*models.Proposal, error) {
	if status != models.ProposalStatusAccepted && status != models.ProposalStatusRejected {
		return nil, fmt.Errorf("invalid proposal resolution: %s", status)
	}

	query := `
		UPDATE proposals
		SET status = ?, handled_at = ?
		WHERE id = ? AND status = 'waiting'
	`
	result, err := d.db.Exec(rebind(query), string(status), time.Now().UTC(), proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve proposal: %w", err)
	}
	if err := requireOneRow(result, "proposal", proposalID); err != nil {
		return nil, err
	}
	return d.GetProposal(proposalID)
}

// ListProposals returns a tenant's proposals newest first, optionally
// filtered by status.
func (d *Database) ListProposals(tenantID string, statusFilter models.ProposalStatus, limit int) ([]*models.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, intent, context_json, status, suggestion_text, created_at, handled_at
		FROM proposals
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
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	p := &models.Proposal{}
	var status string
	var contextJSON, suggestion sql.NullString
	var handledAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Intent,
		&contextJSON,
		&status,
		&suggestion,
		&p.CreatedAt,
		&handledAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProposalStatus(status)
	if contextJSON.Valid && contextJSON.String != "" {
		_ = json.Unmarshal([]byte(contextJSON.String), &p.Context)
	}
	p.SuggestionText = suggestion.String
	if handledAt.Valid {
		t := handledAt.Time
		p.HandledAt = &t
	}
	return p, nil
}
