package models

import "time"

// Feedback is a guest comment consulted by the insight handler when it looks
// for recurring complaints.
type Feedback struct {
	ID        string    `json:"feedback_id"`
	TenantID  string    `json:"tenant_id"`
	Comment   string    `json:"comment"`
	Rating    int       `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is an operational anomaly surfaced to the operator dashboard.
type Alert struct {
	ID          string    `json:"alert_id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is a dashboard message fanned out from alerts, security
// checks, and autopilot runs.
type Notification struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceQuote is the persisted output of a pricing optimization for one
// property.
type PriceQuote struct {
	PropertyID        string    `json:"property_id"`
	TenantID          string    `json:"tenant_id"`
	CurrentPrice      float64   `json:"current_price"`
	OptimizedPrice    float64   `json:"optimized_price"`
	OccupancyRate     float64   `json:"occupancy_rate"`
	CompetitorPrices  []float64 `json:"competitor_prices,omitempty"`
	SeasonalityFactor float64   `json:"seasonality_factor"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Booking is a reservation record created by the booking handler.
type Booking struct {
	ID           string    `json:"booking_id"`
	TenantID     string    `json:"tenant_id"`
	GuestName    string    `json:"guest_name,omitempty"`
	CheckinDate  string    `json:"checkin_date,omitempty"`
	CheckoutDate string    `json:"checkout_date,omitempty"`
	RoomType     string    `json:"room_type,omitempty"`
	NumGuests    int       `json:"num_guests,omitempty"`
	PriceTotal   float64   `json:"price_total,omitempty"`
	Source       string    `json:"source,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Customer is a CRM profile keyed per tenant.
type Customer struct {
	ID               string    `json:"customer_id"`
	TenantID         string    `json:"tenant_id"`
	FullName         string    `json:"full_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Language         string    `json:"language"`
	MarketingConsent bool      `json:"marketing_consent"`
	LastUpdate       time.Time `json:"last_update"`
}

// SupportTicket is a recorded guest issue and its generated response.
type SupportTicket struct {
	ID        string    `json:"ticket_id"`
	TenantID  string    `json:"tenant_id"`
	Issue     string    `json:"issue"`
	Response  string    `json:"response,omitempty"`
	HandledBy string    `json:"handled_by,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IntentRecord is one classifier decision kept for audit.
type IntentRecord struct {
	ID         int64     `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Message    string    `json:"message"`
	Intent     string    `json:"intent"`
	Model      string    `json:"model,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
