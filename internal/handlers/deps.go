package handlers

import (
	"context"
	"time"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/memory"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// Store is the domain persistence surface handlers write through. The
// dispatcher owns the action ledger; handlers only touch domain records.
type Store interface {
	GetTenantState(tenantID string) (*models.TenantState, error)
	UpdateTenantState(tenantID string, updates map[string]any) (*models.TenantState, error)

	CreateDocument(doc *models.Document) error
	ListRecentDocuments(tenantID string, limit int) ([]*models.Document, error)

	CreateInsight(insight *models.Insight) error
	ListRecentInsights(tenantID string, limit int) ([]*models.Insight, error)
	HasRecentSimilarInsight(tenantID, comment string, prefixLen, n int) (bool, error)

	CreateAlert(alert *models.Alert) error
	CreateNotification(n *models.Notification) error

	CreateEvent(event *models.Event) error
	ClaimEvent(eventID string) (bool, error)
	FinishEvent(eventID string, status models.EventStatus, linkedActionID string) error

	UpsertPriceQuote(quote *models.PriceQuote) error
	CreateBooking(b *models.Booking) error
	ListBookingsByCheckin(tenantID, checkinDate string) ([]*models.Booking, error)
	UpsertCustomer(c *models.Customer) error
	CreateSupportTicket(t *models.SupportTicket) error
	CreateFeedback(fb *models.Feedback) error
	ListRecentFeedback(tenantID string, limit int) ([]*models.Feedback, error)

	GetPropertyProfile(tenantID string) (map[string]any, error)
	PutPropertyProfile(tenantID string, profile map[string]any) error

	ListRecentActions(tenantID string, status models.ActionStatus, limit int) ([]*models.Action, error)
	ListEvents(tenantID string, status models.EventStatus, limit int) ([]*models.Event, error)
}

// LLM is the slice of the provider registry handlers call. Implemented by
// *provider.Registry.
type LLM interface {
	Complete(ctx context.Context, messages []provider.ChatMessage, temperature float64, maxTokens int) (string, string, error)
}

// Dispatcher lets the event and autopilot handlers re-enter the dispatch
// loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error)
}

// AutopilotRunner runs one decision cycle for a tenant.
type AutopilotRunner interface {
	Run(ctx context.Context, tenantID string) (models.Result, error)
}

// Deps carries the shared collaborators. Dispatcher and Autopilot are
// assigned after construction to break the registry/dispatcher cycle; both
// are in place before the server accepts requests.
type Deps struct {
	Store  Store
	Memory *memory.Provider
	LLM    LLM
	Mailer Mailer
	Logger *logging.Manager

	Dispatcher Dispatcher
	Autopilot  AutopilotRunner

	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// All builds the default intent table.
func All(deps *Deps) []dispatch.Handler {
	return []dispatch.Handler{
		&PricingHandler{deps},
		&CheckinHandler{deps},
		&CleaningHandler{deps},
		&UpsellHandler{deps},
		&InsightHandler{deps},
		&AlertHandler{deps},
		&SecurityHandler{deps},
		&ReportHandler{deps},
		&SupportHandler{deps},
		&MarketingHandler{deps},
		&CRMHandler{deps},
		&BookingHandler{deps},
		&EventHandler{deps},
		&FAQHandler{deps},
		&FollowupHandler{deps},
		&AutopilotHandler{deps},
		NewGenericHandler(deps, models.IntentContext),
		NewGenericHandler(deps, models.IntentFeedback),
		NewGenericHandler(deps, models.IntentConversion),
		NewGenericHandler(deps, models.IntentRevenue),
		NewGenericHandler(deps, models.IntentBookingFix),
	}
}
