package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/staypro/agenthub/internal/auth"
)

// SaveUser creates or updates an operator account and its password hash.
func (d *Database) SaveUser(user *auth.User, passwordHash string) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, username, password_hash, tenant_id, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			password_hash = excluded.password_hash,
			tenant_id = excluded.tenant_id,
			role = excluded.role,
			is_active = excluded.is_active
	`
	_, err := d.db.Exec(rebind(query),
		user.ID, user.Username, passwordHash,
		sqlNullString(user.TenantID), user.Role, user.IsActive, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUserByUsername returns an account and its password hash, or nil when no
// such user exists.
func (d *Database) GetUserByUsername(username string) (*auth.User, string, error) {
	row := d.db.QueryRow(rebind(`
		SELECT id, username, password_hash, tenant_id, role, is_active, created_at
		FROM users WHERE username = ?
	`), username)

	var user auth.User
	var hash string
	var tenantID sql.NullString
	err := row.Scan(&user.ID, &user.Username, &hash, &tenantID, &user.Role, &user.IsActive, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan user: %w", err)
	}
	user.TenantID = tenantID.String
	return &user, hash, nil
}
