package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// Database wraps the Postgres connection and exposes one repository per
// tenant-scoped collection (actions, state, events, proposals, insights,
// documents, failures, domain records).
type Database struct {
	db *sql.DB
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
// Used throughout the database package for parameterized queries.
func rebind(query string) string {
	n := 1
	out := strings.Builder{}
	for _, ch := range query {
		if ch == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NewPostgres opens a PostgreSQL connection and initializes the schema.
func NewPostgres(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	d := &Database{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// SQL exposes the underlying handle for collaborators that manage their own
// tables (the logging manager).
func (d *Database) SQL() *sql.DB {
	return d.db
}

func (d *Database) initSchema() error {
	schema := `
	-- Per-tenant action ledger: one row per dispatch invocation
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		input_context_json TEXT,
		output_json TEXT,
		error TEXT
	);

	-- Mutable per-tenant context singleton
	CREATE TABLE IF NOT EXISTS tenant_state (
		tenant_id TEXT PRIMARY KEY,
		occupancy_rate INTEGER NOT NULL DEFAULT 0,
		season TEXT NOT NULL DEFAULT 'media',
		pending_tasks_json TEXT,
		last_action TEXT,
		ai_mode TEXT NOT NULL DEFAULT 'assist',
		current_guest_json TEXT,
		negative_feedback_30d INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Deferred cross-handler triggers
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		trigger TEXT NOT NULL,
		next_agent TEXT NOT NULL,
		params_json TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		dispatched_at TIMESTAMP,
		linked_action_id TEXT
	);

	-- Pending actions awaiting user confirmation
	CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		context_json TEXT,
		status TEXT NOT NULL DEFAULT 'waiting',
		suggestion_text TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		handled_at TIMESTAMP
	);

	-- Analytical insight log
	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		source_agent TEXT NOT NULL,
		comment TEXT NOT NULL,
		note TEXT,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		recommendations_json TEXT,
		agents_json TEXT,
		priority_score INTEGER NOT NULL DEFAULT 0,
		duplicate BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Generated documents (reports, confirmations, campaign drafts)
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		linked_ref TEXT
	);

	-- Per-tenant failure registry consulted by the autopilot circuit breaker
	CREATE TABLE IF NOT EXISTS dispatch_failures (
		id SERIAL PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		error_message TEXT,
		failed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Guest feedback consulted by the insight handler
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		comment TEXT NOT NULL,
		rating INTEGER,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Operational alerts and the notifications fanned out from them
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL DEFAULT 'medium',
		source TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		severity TEXT,
		read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Optimized price per property
	CREATE TABLE IF NOT EXISTS dynamic_pricing (
		property_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		current_price REAL NOT NULL,
		optimized_price REAL NOT NULL,
		occupancy_rate REAL NOT NULL,
		competitor_prices_json TEXT,
		seasonality_factor REAL NOT NULL DEFAULT 1.0,
		generated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		guest_name TEXT,
		checkin_date TEXT,
		checkout_date TEXT,
		room_type TEXT,
		num_guests INTEGER,
		price_total REAL,
		source TEXT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crm_customers (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		full_name TEXT,
		email TEXT,
		phone TEXT,
		tags_json TEXT,
		notes TEXT,
		language TEXT NOT NULL DEFAULT 'it',
		marketing_consent BOOLEAN NOT NULL DEFAULT false,
		last_update TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS support_tickets (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		issue TEXT NOT NULL,
		response TEXT,
		handled_by TEXT,
		priority TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Structure profile used to ground LLM prompts
	CREATE TABLE IF NOT EXISTS property_profiles (
		tenant_id TEXT PRIMARY KEY,
		profile_json TEXT,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Operator accounts
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		tenant_id TEXT,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	);

	-- Classifier decision history
	CREATE TABLE IF NOT EXISTS intent_history (
		id SERIAL PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		message TEXT NOT NULL,
		intent TEXT NOT NULL,
		model TEXT,
		detected_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_actions_tenant_started ON actions(tenant_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_actions_tenant_completed ON actions(tenant_id, completed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);
	CREATE INDEX IF NOT EXISTS idx_events_tenant_status ON events(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_events_status_created ON events(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_proposals_tenant_status ON proposals(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_insights_tenant_created ON insights(tenant_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant_generated ON documents(tenant_id, generated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_failures_tenant_failed ON dispatch_failures(tenant_id, failed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_feedback_tenant ON feedback(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_tenant_checkin ON bookings(tenant_id, checkin_date);
	CREATE INDEX IF NOT EXISTS idx_intent_history_tenant ON intent_history(tenant_id, detected_at DESC);
	`

	_, err := d.db.Exec(schema)
	return err
}
