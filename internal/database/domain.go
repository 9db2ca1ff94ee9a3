package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// CreateFeedback stores a guest comment.
func (d *Database) CreateFeedback(fb *models.Feedback) error {
	if fb == nil {
		return fmt.Errorf("feedback cannot be nil")
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO feedback (id, tenant_id, comment, rating, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query), fb.ID, fb.TenantID, fb.Comment, fb.Rating, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListRecentFeedback returns a tenant's feedback newest first.
func (d *Database) ListRecentFeedback(tenantID string, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, comment, rating, created_at
		FROM feedback
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := d.db.Query(rebind(query), tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var items []*models.Feedback
	for rows.Next() {
		fb := &models.Feedback{}
		var rating sql.NullInt64
		if err := rows.Scan(&fb.ID, &fb.TenantID, &fb.Comment, &rating, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.Rating = int(rating.Int64)
		items = append(items, fb)
	}
	return items, rows.Err()
}

// CreateAlert stores an operational alert.
func (d *Database) CreateAlert(alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	if alert.Severity == "" {
		alert.Severity = models.SeverityMedium
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (id, tenant_id, title, description, severity, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query),
		alert.ID, alert.TenantID, alert.Title,
		sqlNullString(alert.Description), alert.Severity,
		sqlNullString(alert.Source), alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListRecentAlerts returns a tenant's alerts newest first.
func (d *Database) ListRecentAlerts(tenantID string, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, title, description, severity, source, created_at
		FROM alerts
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := d.db.Query(rebind(query), tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a := &models.Alert{}
		var description, source sql.NullString
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Title, &description, &a.Severity, &source, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Description = description.String
		a.Source = source.String
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CreateNotification fans a message out to the operator dashboard.
func (d *Database) CreateNotification(n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (tenant_id, type, title, message, severity, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query),
		n.TenantID, n.Type, n.Title,
		sqlNullString(n.Message), sqlNullString(n.Severity),
		n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// UpsertPriceQuote stores the latest optimized price for a property.
func (d *Database) UpsertPriceQuote(quote *models.PriceQuote) error {
	if quote == nil {
		return fmt.Errorf("price quote cannot be nil")
	}
	if quote.GeneratedAt.IsZero() {
		quote.GeneratedAt = time.Now().UTC()
	}

	compJSON, err := json.Marshal(quote.CompetitorPrices)
	if err != nil {
		return fmt.Errorf("failed to marshal competitor prices: %w", err)
	}

	query := `
		INSERT INTO dynamic_pricing (property_id, tenant_id, current_price, optimized_price,
		                             occupancy_rate, competitor_prices_json, seasonality_factor, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (property_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			current_price = EXCLUDED.current_price,
			optimized_price = EXCLUDED.optimized_price,
			occupancy_rate = EXCLUDED.occupancy_rate,
			competitor_prices_json = EXCLUDED.competitor_prices_json,
			seasonality_factor = EXCLUDED.seasonality_factor,
			generated_at = EXCLUDED.generated_at
	`
	_, err = d.db.Exec(rebind(query),
		quote.PropertyID, quote.TenantID, quote.CurrentPrice, quote.OptimizedPrice,
		quote.OccupancyRate, string(compJSON), quote.SeasonalityFactor, quote.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price quote: %w", err)
	}
	return nil
}

// CreateBooking stores a reservation created through the booking handler.
func (d *Database) CreateBooking(b *models.Booking) error {
	if b == nil {
		return fmt.Errorf("booking cannot be nil")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO bookings (id, tenant_id, guest_name, checkin_date, checkout_date,
		                      room_type, num_guests, price_total, source, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query),
		b.ID, b.TenantID,
		sqlNullString(b.GuestName), sqlNullString(b.CheckinDate), sqlNullString(b.CheckoutDate),
		sqlNullString(b.RoomType), b.NumGuests, b.PriceTotal,
		sqlNullString(b.Source), sqlNullString(b.Notes), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// ListBookingsByCheckin returns a tenant's bookings arriving on checkinDate
// (YYYY-MM-DD).
func (d *Database) ListBookingsByCheckin(tenantID, checkinDate string) ([]*models.Booking, error) {
	query := `
		SELECT id, tenant_id, guest_name, checkin_date, checkout_date,
		       room_type, num_guests, price_total, source, notes, created_at
		FROM bookings
		WHERE tenant_id = ? AND checkin_date = ?
		ORDER BY created_at ASC
	`
	rows, err := d.db.Query(rebind(query), tenantID, checkinDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var items []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var guestName, checkin, checkout, roomType, source, notes sql.NullString
		if err := rows.Scan(&b.ID, &b.TenantID, &guestName, &checkin, &checkout,
			&roomType, &b.NumGuests, &b.PriceTotal, &source, &notes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.GuestName = guestName.String
		b.CheckinDate = checkin.String
		b.CheckoutDate = checkout.String
		b.RoomType = roomType.String
		b.Source = source.String
		b.Notes = notes.String
		items = append(items, b)
	}
	return items, rows.Err()
}

// UpsertCustomer merges a CRM profile keyed by (tenant, customer).
func (d *Database) UpsertCustomer(c *models.Customer) error {
	if c == nil {
		return fmt.Errorf("customer cannot be nil")
	}
	if c.Language == "" {
		c.Language = "it"
	}
	c.LastUpdate = time.Now().UTC()

	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO crm_customers (id, tenant_id, full_name, email, phone, tags_json, notes, language, marketing_consent, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			tags_json = EXCLUDED.tags_json,
			notes = EXCLUDED.notes,
			language = EXCLUDED.language,
			marketing_consent = EXCLUDED.marketing_consent,
			last_update = EXCLUDED.last_update
	`
	_, err = d.db.Exec(rebind(query),
		c.ID, c.TenantID,
		sqlNullString(c.FullName), sqlNullString(c.Email), sqlNullString(c.Phone),
		string(tagsJSON), sqlNullString(c.Notes), c.Language, c.MarketingConsent, c.LastUpdate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// CreateSupportTicket stores a guest issue and its generated response.
func (d *Database) CreateSupportTicket(t *models.SupportTicket) error {
	if t == nil {
		return fmt.Errorf("ticket cannot be nil")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO support_tickets (id, tenant_id, issue, response, handled_by, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query),
		t.ID, t.TenantID, t.Issue,
		sqlNullString(t.Response), sqlNullString(t.HandledBy), sqlNullString(t.Priority),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create support ticket: %w", err)
	}
	return nil
}

// GetPropertyProfile returns the tenant's structure profile, or nil when none
// has been saved.
func (d *Database) GetPropertyProfile(tenantID string) (map[string]any, error) {
	query := `SELECT profile_json FROM property_profiles WHERE tenant_id = ?`
	var profileJSON sql.NullString
	err := d.db.QueryRow(rebind(query), tenantID).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property profile: %w", err)
	}
	if !profileJSON.Valid || profileJSON.String == "" {
		return nil, nil
	}

	var profile map[string]any
	if err := json.Unmarshal([]byte(profileJSON.String), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode property profile: %w", err)
	}
	return profile, nil
}

// PutPropertyProfile replaces the tenant's structure profile.
func (d *Database) PutPropertyProfile(tenantID string, profile map[string]any) error {
	profileJSON, err := marshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal property profile: %w", err)
	}

	query := `
		INSERT INTO property_profiles (tenant_id, profile_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			profile_json = EXCLUDED.profile_json,
			updated_at = EXCLUDED.updated_at
	`
	_, err = d.db.Exec(rebind(query), tenantID, sqlNullString(profileJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put property profile: %w", err)
	}
	return nil
}

// RecordIntentDecision appends one classifier decision to the audit history.
func (d *Database) RecordIntentDecision(tenantID, message, intent, model string) error {
	query := `
		INSERT INTO intent_history (tenant_id, message, intent, model, detected_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(rebind(query), tenantID, message, intent, sqlNullString(model), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record intent decision: %w", err)
	}
	return nil
}
