package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateDocument persists a generated artifact.
func (d *Database) CreateDocument(doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, tenant_id, type, content, generated_at, linked_ref)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query),
		doc.ID,
		doc.TenantID,
		doc.Type,
		doc.Content,
		doc.GeneratedAt,
		sqlNullString(doc.LinkedRef),
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// ListRecentDocuments returns a tenant's documents newest first.
func (d *Database) ListRecentDocuments(tenantID string, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, type, content, generated_at, linked_ref
		FROM documents
		WHERE tenant_id = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`
	rows, err := d.db.Query(rebind(query), tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		var linkedRef sql.NullString
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Type, &doc.Content, &doc.GeneratedAt, &linkedRef); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.LinkedRef = linkedRef.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
