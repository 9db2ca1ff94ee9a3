package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	state     map[string]*models.TenantState
	documents []*models.Document
	insights  []*models.Insight
	alerts    []*models.Alert
	notifs    []*models.Notification
	events    map[string]*models.Event
	quotes    []*models.PriceQuote
	bookings  []*models.Booking
	customers []*models.Customer
	tickets   []*models.SupportTicket
	feedback  []*models.Feedback
	profiles  map[string]map[string]any
	actions   []*models.Action
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state:    make(map[string]*models.TenantState),
		events:   make(map[string]*models.Event),
		profiles: make(map[string]map[string]any),
	}
}

func (f *fakeStore) GetTenantState(tenantID string) (*models.TenantState, error) {
	if s, ok := f.state[tenantID]; ok {
		return s, nil
	}
	s := models.DefaultTenantState(tenantID)
	f.state[tenantID] = s
	return s, nil
}

func (f *fakeStore) UpdateTenantState(tenantID string, updates map[string]any) (*models.TenantState, error) {
	s, _ := f.GetTenantState(tenantID)
	if v, ok := updates["negative_feedback_30d"].(int); ok {
		s.NegativeFeedback30 = v
	}
	if v, ok := updates["occupancy_rate"].(int); ok {
		s.OccupancyRate = v
	}
	if v, ok := updates["pending_tasks"].([]string); ok {
		s.PendingTasks = v
	}
	if v, ok := updates["last_action"].(string); ok {
		s.LastAction = v
	}
	s.UpdatedAt = time.Now().UTC()
	return s, nil
}

func (f *fakeStore) CreateDocument(doc *models.Document) error {
	f.documents = append(f.documents, doc)
	return nil
}

func (f *fakeStore) ListRecentDocuments(tenantID string, limit int) ([]*models.Document, error) {
	return f.documents, nil
}

func (f *fakeStore) CreateInsight(insight *models.Insight) error {
	f.insights = append(f.insights, insight)
	return nil
}

func (f *fakeStore) ListRecentInsights(tenantID string, limit int) ([]*models.Insight, error) {
	out := make([]*models.Insight, 0, len(f.insights))
	for i := len(f.insights) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.insights[i])
	}
	return out, nil
}

func (f *fakeStore) HasRecentSimilarInsight(tenantID, comment string, prefixLen, n int) (bool, error) {
	prefix := comment
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	for _, ins := range f.insights {
		existing := ins.Comment
		if len(existing) > prefixLen {
			existing = existing[:prefixLen]
		}
		if existing == prefix {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateAlert(alert *models.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeStore) CreateNotification(n *models.Notification) error {
	f.notifs = append(f.notifs, n)
	return nil
}

func (f *fakeStore) CreateEvent(event *models.Event) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeStore) ClaimEvent(eventID string) (bool, error) {
	e, ok := f.events[eventID]
	if !ok || e.Status != models.EventStatusPending {
		return false, nil
	}
	e.Status = models.EventStatusDispatched
	return true, nil
}

func (f *fakeStore) FinishEvent(eventID string, status models.EventStatus, linkedActionID string) error {
	e, ok := f.events[eventID]
	if !ok || e.Status != models.EventStatusDispatched {
		return errors.New("event not dispatched")
	}
	e.Status = status
	e.LinkedActionID = linkedActionID
	return nil
}

func (f *fakeStore) UpsertPriceQuote(quote *models.PriceQuote) error {
	f.quotes = append(f.quotes, quote)
	return nil
}

func (f *fakeStore) CreateBooking(b *models.Booking) error {
	f.bookings = append(f.bookings, b)
	return nil
}

func (f *fakeStore) ListBookingsByCheckin(tenantID, checkinDate string) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.CheckinDate == checkinDate {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertCustomer(c *models.Customer) error {
	f.customers = append(f.customers, c)
	return nil
}

func (f *fakeStore) CreateSupportTicket(t *models.SupportTicket) error {
	f.tickets = append(f.tickets, t)
	return nil
}

func (f *fakeStore) CreateFeedback(fb *models.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeStore) ListRecentFeedback(tenantID string, limit int) ([]*models.Feedback, error) {
	return f.feedback, nil
}

func (f *fakeStore) GetPropertyProfile(tenantID string) (map[string]any, error) {
	return f.profiles[tenantID], nil
}

func (f *fakeStore) PutPropertyProfile(tenantID string, profile map[string]any) error {
	f.profiles[tenantID] = profile
	return nil
}

func (f *fakeStore) ListRecentActions(tenantID string, status models.ActionStatus, limit int) ([]*models.Action, error) {
	return f.actions, nil
}

func (f *fakeStore) ListEvents(tenantID string, status models.EventStatus, limit int) ([]*models.Event, error) {
	out := make([]*models.Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

// fakeLLM returns a fixed answer.
type fakeLLM struct {
	answer string
	err    error
	calls  int
}

func (f *fakeLLM) Complete(ctx context.Context, messages []provider.ChatMessage, temperature float64, maxTokens int) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.answer, "primary", nil
}

type sentMail struct {
	to, subject string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return nil
}

func newDeps(store *fakeStore, llm *fakeLLM) *Deps {
	return &Deps{
		Store:  store,
		LLM:    llm,
		Mailer: &fakeMailer{},
		Logger: logging.NewManager(nil),
	}
}

func request(intent string, ctx map[string]any) *dispatch.Request {
	return &dispatch.Request{
		TenantID: "tenant-1",
		Intent:   intent,
		ActionID: "action-1",
		Context:  ctx,
	}
}

func TestPricingFormula(t *testing.T) {
	store := newFakeStore()
	store.state["tenant-1"] = &models.TenantState{TenantID: "tenant-1", Season: "alta", AIMode: models.AIModeAssist}
	llm := &fakeLLM{err: errors.New("offline")} // baseline must survive LLM failure
	h := &PricingHandler{newDeps(store, llm)}

	res, err := h.Handle(context.Background(), request(models.IntentPricing, map[string]any{
		"property_id":       "p1",
		"current_price":     100.0,
		"competitor_prices": []any{80.0, 120.0},
	}))
	require.NoError(t, err)
	require.Equal(t, "completed", res.Status())

	// (100*0.7 + 100*0.3) * 1.2 = 120
	assert.Equal(t, 120.0, res["optimized_price"])
	require.Len(t, store.quotes, 1)
	assert.Equal(t, 1.2, store.quotes[0].SeasonalityFactor)
}

func TestPricingUsesLLMRefinement(t *testing.T) {
	store := newFakeStore()
	h := &PricingHandler{newDeps(store, &fakeLLM{answer: "€ 95,50"})}

	res, err := h.Handle(context.Background(), request(models.IntentPricing, map[string]any{
		"property_id":       "p1",
		"current_price":     100.0,
		"competitor_prices": []any{90.0},
	}))
	require.NoError(t, err)
	assert.Equal(t, 95.5, res["optimized_price"])
}

func TestPricingRequiresInputs(t *testing.T) {
	h := &PricingHandler{newDeps(newFakeStore(), &fakeLLM{answer: "100"})}

	res, _ := h.Handle(context.Background(), request(models.IntentPricing, map[string]any{
		"property_id": "p1", "current_price": 100.0,
	}))
	assert.Equal(t, "error", res.Status(), "missing competitor_prices must yield an error result")
}

func TestCheckinStoresDocumentAndSendsMail(t *testing.T) {
	store := newFakeStore()
	deps := newDeps(store, &fakeLLM{answer: "Welcome Maria!"})
	mailer := deps.Mailer.(*fakeMailer)
	h := &CheckinHandler{deps}

	res, err := h.Handle(context.Background(), request(models.IntentCheckin, map[string]any{
		"guest_name":   "Maria",
		"guest_email":  "maria@example.com",
		"checkin_date": "2026-09-01",
	}))
	require.NoError(t, err)
	assert.Equal(t, true, res["email_sent"])
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "maria@example.com", mailer.sent[0].to)
	require.Len(t, store.documents, 1)
	assert.Equal(t, "checkin_confirmation", store.documents[0].Type)
}

func TestCheckinMailFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	deps := newDeps(store, &fakeLLM{answer: "Welcome!"})
	deps.Mailer = &fakeMailer{err: errors.New("smtp down")}
	h := &CheckinHandler{deps}

	res, err := h.Handle(context.Background(), request(models.IntentCheckin, map[string]any{
		"guest_name": "Maria", "guest_email": "maria@example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status(), "mail failure must not fail the handler")
	assert.Equal(t, false, res["email_sent"])
	assert.Len(t, store.documents, 1, "document must still be stored")
}

func TestSupportFallbackSkipsLLM(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{answer: "should not be used"}
	h := &SupportHandler{newDeps(store, llm)}

	res, err := h.Handle(context.Background(), request(models.IntentSupport, map[string]any{
		"issue": "The wifi is not working in room 3",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, llm.calls, "keyword fallback must not call the LLM")
	assert.Equal(t, "fallback", res["handled_by"])
	assert.Equal(t, models.SeverityMedium, res["priority"])
	assert.Len(t, store.tickets, 1)
}

func TestSupportUrgentPriority(t *testing.T) {
	h := &SupportHandler{newDeps(newFakeStore(), &fakeLLM{answer: "Shut the valve under the sink."})}

	res, err := h.Handle(context.Background(), request(models.IntentSupport, map[string]any{
		"issue": "There is a water leak in the bathroom",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, res["priority"])
	assert.Equal(t, "llm", res["handled_by"])
}

func TestInsightScoringAndPersistence(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{answer: `{"comment": "Occupancy is critically low for the season", "category": "opportunity", "severity": "high", "recommendations": ["lower midweek rates", "launch a campaign"], "agents_to_trigger": ["pricing", "marketing", "bogus"]}`}
	h := &InsightHandler{newDeps(store, llm)}

	res, err := h.Handle(context.Background(), request(models.IntentInsight, nil))
	require.NoError(t, err)

	// 50 + 25 (high) + 15 (opportunity) + 10 (>=2 recs) = 100
	assert.Equal(t, 100, res["priority_score"])
	assert.Len(t, res["agents_to_trigger"].([]string), 2, "invalid agents must be filtered")
	require.Len(t, store.insights, 1)
	assert.False(t, store.insights[0].Duplicate, "first insight must not be a duplicate")
}

func TestInsightDuplicateDetection(t *testing.T) {
	store := newFakeStore()
	store.insights = append(store.insights, &models.Insight{
		Comment: "Occupancy is critically low for the season",
	})
	llm := &fakeLLM{answer: `{"comment": "Occupancy is critically low for the season ahead", "category": "warning", "severity": "medium", "recommendations": []}`}
	h := &InsightHandler{newDeps(store, llm)}

	res, err := h.Handle(context.Background(), request(models.IntentInsight, nil))
	require.NoError(t, err)
	assert.Equal(t, true, res["duplicate"])
}

func TestScoreInsightClamp(t *testing.T) {
	score := ScoreInsight(&models.Insight{
		Severity:        models.SeverityHigh,
		Category:        models.InsightCategoryOpportunity,
		Recommendations: []string{"a", "b", "c"},
	})
	assert.Equal(t, 100, score, "score must clamp at 100")

	score = ScoreInsight(&models.Insight{Severity: models.SeverityLow, Category: models.InsightCategoryOperational})
	assert.Equal(t, 50, score)
}

func TestFeedbackBumpsNegativeCounter(t *testing.T) {
	store := newFakeStore()
	h := NewGenericHandler(newDeps(store, &fakeLLM{}), models.IntentFeedback)

	res, err := h.Handle(context.Background(), request(models.IntentFeedback, map[string]any{
		"comment": "The room was cold and dirty",
		"rating":  1.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, true, res["negative"], "rating 1 must be negative")
	assert.Equal(t, 1, store.state["tenant-1"].NegativeFeedback30)
	assert.Len(t, store.feedback, 1)
}

func TestFeedbackPositiveLeavesCounter(t *testing.T) {
	store := newFakeStore()
	store.state["tenant-1"] = models.DefaultTenantState("tenant-1")
	h := NewGenericHandler(newDeps(store, &fakeLLM{}), models.IntentFeedback)

	_, err := h.Handle(context.Background(), request(models.IntentFeedback, map[string]any{
		"comment": "Lovely stay", "rating": 5.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, store.state["tenant-1"].NegativeFeedback30, "positive feedback must not bump the counter")
}

func TestUpsellSuggestions(t *testing.T) {
	store := newFakeStore()
	store.state["tenant-1"] = &models.TenantState{
		TenantID: "tenant-1", Season: "media", AIMode: models.AIModeAggressive,
		CurrentGuest: &models.Guest{Name: "Luca", Tags: []string{"returning"}},
	}
	h := &UpsellHandler{newDeps(store, &fakeLLM{})}

	res, err := h.Handle(context.Background(), request(models.IntentUpsell, map[string]any{
		"available_upgrades": []any{"suite"},
		"available_services": []any{"breakfast"},
	}))
	require.NoError(t, err)
	assert.Len(t, res["suggestions"].([]string), 3, "expected upgrade, service, and returning-guest suggestions")
}

type fakeDispatcher struct {
	result *models.DispatchResult
	err    error
	calls  int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error) {
	f.calls++
	return f.result, f.err
}

func TestEventHandlerDrainsHandoff(t *testing.T) {
	store := newFakeStore()
	deps := newDeps(store, &fakeLLM{})
	deps.Dispatcher = &fakeDispatcher{result: &models.DispatchResult{Status: "completed", ActionID: "inner-1"}}
	h := &EventHandler{deps}

	res, err := h.Handle(context.Background(), request(models.IntentEvent, map[string]any{
		"trigger":    "post_checkin",
		"next_agent": models.IntentUpsell,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(models.EventStatusDone), res["status"])
	assert.Equal(t, "inner-1", res["linked_action_id"])

	var event *models.Event
	for _, e := range store.events {
		event = e
	}
	require.NotNil(t, event)
	assert.Equal(t, models.EventStatusDone, event.Status)
	assert.Equal(t, "inner-1", event.LinkedActionID)
}

func TestEventHandlerRejectsInvalidAgent(t *testing.T) {
	deps := newDeps(newFakeStore(), &fakeLLM{})
	deps.Dispatcher = &fakeDispatcher{}
	h := &EventHandler{deps}

	res, _ := h.Handle(context.Background(), request(models.IntentEvent, map[string]any{
		"trigger": "x", "next_agent": "espresso",
	}))
	assert.Equal(t, "error", res.Status(), "invalid next_agent must yield an error result")
}

func TestEventHandlerMarksFailedHandoff(t *testing.T) {
	store := newFakeStore()
	deps := newDeps(store, &fakeLLM{})
	deps.Dispatcher = &fakeDispatcher{result: &models.DispatchResult{Status: "error", Message: "boom", ActionID: "inner-2"}}
	h := &EventHandler{deps}

	res, err := h.Handle(context.Background(), request(models.IntentEvent, map[string]any{
		"trigger": "x", "next_agent": models.IntentPricing,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(models.EventStatusError), res["status"])
}

func TestAllRegistersEveryValidIntent(t *testing.T) {
	deps := newDeps(newFakeStore(), &fakeLLM{})
	handlers := All(deps)

	seen := make(map[string]bool)
	for _, h := range handlers {
		seen[h.Intent()] = true
	}
	for _, intent := range models.ValidIntents {
		assert.True(t, seen[intent], "no handler registered for %s", intent)
	}
	assert.Len(t, handlers, len(models.ValidIntents))
}

func TestContextHandlerReturnsState(t *testing.T) {
	store := newFakeStore()
	h := NewGenericHandler(newDeps(store, &fakeLLM{}), models.IntentContext)

	res, err := h.Handle(context.Background(), request(models.IntentContext, nil))
	require.NoError(t, err)
	assert.Equal(t, "media", res["season"])
	assert.Equal(t, models.AIModeAssist, res["ai_mode"])
}

func TestBookingCreatesRecord(t *testing.T) {
	store := newFakeStore()
	h := &BookingHandler{newDeps(store, &fakeLLM{})}

	res, err := h.Handle(context.Background(), request(models.IntentBooking, map[string]any{
		"guest_name":   "Maria",
		"checkin_date": "2026-09-01",
		"num_guests":   3.0,
	}))
	require.NoError(t, err)
	require.Equal(t, "completed", res.Status())
	require.Len(t, store.bookings, 1)
	assert.Equal(t, 3, store.bookings[0].NumGuests)

	res, _ = h.Handle(context.Background(), request(models.IntentBooking, map[string]any{
		"guest_name": "Luis",
	}))
	assert.Equal(t, "error", res.Status(), "missing checkin_date must yield an error result")
}

func TestBookingArrivalsDefaultsToTomorrow(t *testing.T) {
	store := newFakeStore()
	deps := newDeps(store, &fakeLLM{})
	deps.Now = func() time.Time {
		return time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	}
	h := &BookingHandler{deps}

	store.bookings = []*models.Booking{
		{ID: "b1", TenantID: "tenant-1", GuestName: "Maria", CheckinDate: "2026-08-28"},
		{ID: "b2", TenantID: "tenant-1", GuestName: "Luis", CheckinDate: "2026-08-29"},
		{ID: "b3", TenantID: "tenant-2", GuestName: "Ana", CheckinDate: "2026-08-28"},
	}

	res, err := h.Handle(context.Background(), request(models.IntentBooking, map[string]any{
		"operation": "arrivals",
	}))
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", res["date"])
	assert.Equal(t, 1, res["count"])

	arrivals := res["arrivals"].([]map[string]any)
	require.Len(t, arrivals, 1)
	assert.Equal(t, "Maria", arrivals[0]["guest_name"])

	res, _ = h.Handle(context.Background(), request(models.IntentBooking, map[string]any{
		"operation": "arrivals", "date": "2026-08-29",
	}))
	assert.Equal(t, 1, res["count"])
}
