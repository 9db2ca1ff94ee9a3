package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/staypro/agenthub/internal/auth"
	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/memory"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/pkg/config"
	"github.com/staypro/agenthub/pkg/models"
)

type fakeStore struct {
	actions   map[string]*models.Action
	states    map[string]*models.TenantState
	events    []*models.Event
	proposals map[string]*models.Proposal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		actions:   make(map[string]*models.Action),
		states:    make(map[string]*models.TenantState),
		proposals: make(map[string]*models.Proposal),
	}
}

func (f *fakeStore) GetAction(actionID string) (*models.Action, error) {
	a, ok := f.actions[actionID]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}

func (f *fakeStore) ListRecentActions(tenantID string, statusFilter models.ActionStatus, limit int) ([]*models.Action, error) {
	var out []*models.Action
	for _, a := range f.actions {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTenantState(tenantID string) (*models.TenantState, error) {
	if s, ok := f.states[tenantID]; ok {
		return s, nil
	}
	return models.DefaultTenantState(tenantID), nil
}

func (f *fakeStore) UpdateTenantState(tenantID string, updates map[string]any) (*models.TenantState, error) {
	state, _ := f.GetTenantState(tenantID)
	if season, ok := updates["season"].(string); ok {
		state.Season = season
	}
	f.states[tenantID] = state
	return state, nil
}

func (f *fakeStore) CreateEvent(event *models.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListEvents(tenantID string, statusFilter models.EventStatus, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.TenantID == tenantID && e.Status == statusFilter {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateProposal(p *models.Proposal) error {
	f.proposals[p.ID] = p
	return nil
}

func (f *fakeStore) GetProposal(id string) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (f *fakeStore) ResolveProposal(id string, status models.ProposalStatus) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if p.Status != models.ProposalStatusWaiting {
		return nil, fmt.Errorf("proposal %s already %s", id, p.Status)
	}
	p.Status = status
	now := time.Now().UTC()
	p.HandledAt = &now
	return p, nil
}

func (f *fakeStore) ListProposals(tenantID string, statusFilter models.ProposalStatus, limit int) ([]*models.Proposal, error) {
	var out []*models.Proposal
	for _, p := range f.proposals {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	calls []string
	fail  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error) {
	f.calls = append(f.calls, intent)
	if f.fail != nil {
		return &models.DispatchResult{Status: "error", Message: f.fail.Error(), ActionID: "a-err"}, f.fail
	}
	return &models.DispatchResult{Status: "completed", Output: map[string]any{"status": "completed"}, ActionID: "a-1"}, nil
}

type fakeClassifier struct{ intent string }

func (f *fakeClassifier) Classify(ctx context.Context, tenantID, message string) string {
	if f.intent == "" {
		return models.IntentUnknown
	}
	return f.intent
}

type fakeMemory struct{}

func (fakeMemory) State(tenantID string) (*models.TenantState, error) {
	return models.DefaultTenantState(tenantID), nil
}

func (fakeMemory) Recent(tenantID string, n int) ([]models.MemoryEntry, error) {
	return []models.MemoryEntry{{Type: "action:pricing"}}, nil
}

func (fakeMemory) LongTerm(ctx context.Context, tenantID string) map[string]any {
	return map[string]any{}
}

func (fakeMemory) Full(ctx context.Context, tenantID string, n int) (*memory.Snapshot, error) {
	return &memory.Snapshot{State: models.DefaultTenantState(tenantID)}, nil
}

func newTestServer(t *testing.T, store *fakeStore, d *fakeDispatcher, c *fakeClassifier, authMgr *auth.Manager, enableAuth bool) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Security.EnableAuth = enableAuth
	s := NewServer(cfg, store, d, c, fakeMemory{}, authMgr, logging.NewManager(nil), metrics.NewMetrics())
	return s.SetupRoutes()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rr.Body.String())
	}
	return out
}

func TestDispatchEndpoint(t *testing.T) {
	d := &fakeDispatcher{}
	handler := newTestServer(t, newFakeStore(), d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/dispatch", map[string]any{
		"tenant_id": "t1",
		"intent":    models.IntentPricing,
		"context":   map[string]any{"property_id": "p1"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["status"] != "completed" || body["action_id"] != "a-1" {
		t.Errorf("Unexpected body: %v", body)
	}
	if len(d.calls) != 1 || d.calls[0] != models.IntentPricing {
		t.Errorf("Unexpected dispatch calls: %v", d.calls)
	}
}

func TestDispatchRequiresTenantAndIntent(t *testing.T) {
	handler := newTestServer(t, newFakeStore(), &fakeDispatcher{}, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/dispatch", map[string]any{"intent": "pricing"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}

	rr = postJSON(t, handler, "/api/v1/dispatch", map[string]any{"tenant_id": "t1"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}

func TestDispatchUnsupportedIntentIsClientError(t *testing.T) {
	d := &fakeDispatcher{fail: fmt.Errorf("no handler: %w", dispatch.ErrUnsupportedIntent)}
	handler := newTestServer(t, newFakeStore(), d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/dispatch", map[string]any{
		"tenant_id": "t1",
		"intent":    "teleport",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "error" || body["action_id"] != "a-err" {
		t.Errorf("Expected error result with ledger reference, got %v", body)
	}
}

func TestChatAssistModeCreatesProposal(t *testing.T) {
	store := newFakeStore()
	d := &fakeDispatcher{}
	handler := newTestServer(t, store, d, &fakeClassifier{intent: models.IntentPricing}, nil, false)

	rr := postJSON(t, handler, "/api/v1/chat", map[string]any{
		"tenant_id": "t1",
		"message":   "can you optimize my prices?",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["mode"] != "proposed" {
		t.Errorf("Expected proposed mode, got %v", body["mode"])
	}
	if len(d.calls) != 0 {
		t.Errorf("Assist mode must not dispatch, got %v", d.calls)
	}
	if len(store.proposals) != 1 {
		t.Fatalf("Expected 1 proposal, got %d", len(store.proposals))
	}
	for _, p := range store.proposals {
		if p.Intent != models.IntentPricing || p.Status != models.ProposalStatusWaiting {
			t.Errorf("Unexpected proposal: %+v", p)
		}
	}
}

func TestChatAggressiveModeDispatches(t *testing.T) {
	store := newFakeStore()
	store.states["t1"] = &models.TenantState{TenantID: "t1", AIMode: models.AIModeAggressive}
	d := &fakeDispatcher{}
	handler := newTestServer(t, store, d, &fakeClassifier{intent: models.IntentUpsell}, nil, false)

	rr := postJSON(t, handler, "/api/v1/chat", map[string]any{
		"tenant_id": "t1",
		"message":   "push some upsells",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if decode(t, rr)["mode"] != "dispatched" {
		t.Error("Expected dispatched mode")
	}
	if len(d.calls) != 1 || d.calls[0] != models.IntentUpsell {
		t.Errorf("Unexpected dispatch calls: %v", d.calls)
	}
}

func TestChatUnknownIntent(t *testing.T) {
	store := newFakeStore()
	d := &fakeDispatcher{}
	handler := newTestServer(t, store, d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/chat", map[string]any{
		"tenant_id": "t1",
		"message":   "what is the meaning of life",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if decode(t, rr)["intent"] != models.IntentUnknown {
		t.Error("Expected unknown intent")
	}
	if len(d.calls) != 0 || len(store.proposals) != 0 {
		t.Error("Unknown intent must neither dispatch nor propose")
	}
}

func TestProposalAcceptDispatchesOnce(t *testing.T) {
	store := newFakeStore()
	store.proposals["p1"] = &models.Proposal{
		ID: "p1", TenantID: "t1", Intent: models.IntentPricing,
		Context: map[string]any{"property_id": "x"},
		Status:  models.ProposalStatusWaiting,
	}
	d := &fakeDispatcher{}
	handler := newTestServer(t, store, d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/proposals/p1/accept", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(d.calls) != 1 || d.calls[0] != models.IntentPricing {
		t.Errorf("Unexpected dispatch calls: %v", d.calls)
	}

	// A second accept finds the proposal already resolved.
	rr = postJSON(t, handler, "/api/v1/proposals/p1/accept", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 on double accept, got %d", rr.Code)
	}
	if len(d.calls) != 1 {
		t.Errorf("Double accept must not dispatch again, got %v", d.calls)
	}
}

func TestProposalReject(t *testing.T) {
	store := newFakeStore()
	store.proposals["p1"] = &models.Proposal{
		ID: "p1", TenantID: "t1", Intent: models.IntentPricing,
		Status: models.ProposalStatusWaiting,
	}
	d := &fakeDispatcher{}
	handler := newTestServer(t, store, d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/proposals/p1/reject", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if store.proposals["p1"].Status != models.ProposalStatusRejected {
		t.Errorf("Expected rejected, got %s", store.proposals["p1"].Status)
	}
	if len(d.calls) != 0 {
		t.Error("Reject must not dispatch")
	}
}

func TestContextRoundtrip(t *testing.T) {
	handler := newTestServer(t, newFakeStore(), &fakeDispatcher{}, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/context", map[string]any{
		"tenant_id": "t1",
		"updates":   map[string]any{"season": "alta"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/context?tenant_id=t1", nil)
	getRR := httptest.NewRecorder()
	handler.ServeHTTP(getRR, req)
	if getRR.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", getRR.Code)
	}
	if decode(t, getRR)["season"] != "alta" {
		t.Errorf("Expected updated season, got %s", getRR.Body.String())
	}
}

func TestEventCreateValidatesNextAgent(t *testing.T) {
	store := newFakeStore()
	handler := newTestServer(t, store, &fakeDispatcher{}, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/events", map[string]any{
		"tenant_id":  "t1",
		"trigger":    "post_checkin",
		"next_agent": "teleport",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown next_agent, got %d", rr.Code)
	}

	rr = postJSON(t, handler, "/api/v1/events", map[string]any{
		"tenant_id":  "t1",
		"trigger":    "post_checkin",
		"next_agent": models.IntentUpsell,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.events) != 1 || store.events[0].Status != models.EventStatusPending {
		t.Errorf("Expected one pending event, got %+v", store.events)
	}
}

func TestAuthMiddleware(t *testing.T) {
	authMgr := auth.NewManager("test-secret", nil)
	user, err := authMgr.CreateUser("anna", "s3cret", "tenant-1", "operator")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	token, err := authMgr.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	d := &fakeDispatcher{}
	handler := newTestServer(t, newFakeStore(), d, &fakeClassifier{}, authMgr, true)

	// No token: rejected.
	rr := postJSON(t, handler, "/api/v1/dispatch", map[string]any{"tenant_id": "x", "intent": "pricing"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rr.Code)
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	healthRR := httptest.NewRecorder()
	handler.ServeHTTP(healthRR, req)
	if healthRR.Code != http.StatusOK {
		t.Errorf("Expected open health endpoint, got %d", healthRR.Code)
	}

	// With token: accepted, and the token's tenant overrides the body.
	data, _ := json.Marshal(map[string]any{"tenant_id": "someone-else", "intent": models.IntentPricing})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+token)
	authRR := httptest.NewRecorder()
	handler.ServeHTTP(authRR, req)
	if authRR.Code != http.StatusOK {
		t.Fatalf("Expected 200 with token, got %d: %s", authRR.Code, authRR.Body.String())
	}
	if len(d.calls) != 1 {
		t.Fatalf("Expected one dispatch, got %v", d.calls)
	}
}

func TestActionTenantIsolation(t *testing.T) {
	authMgr := auth.NewManager("test-secret", nil)
	user, _ := authMgr.CreateUser("anna", "s3cret", "tenant-1", "operator")
	token, _ := authMgr.GenerateToken(user)

	store := newFakeStore()
	store.actions["a1"] = &models.Action{ID: "a1", TenantID: "tenant-2", Intent: "pricing"}
	handler := newTestServer(t, store, &fakeDispatcher{}, &fakeClassifier{}, authMgr, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions/a1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another tenant's action, got %d", rr.Code)
	}
}

func TestAutopilotRunEndpoint(t *testing.T) {
	d := &fakeDispatcher{}
	handler := newTestServer(t, newFakeStore(), d, &fakeClassifier{}, nil, false)

	rr := postJSON(t, handler, "/api/v1/autopilot/run", map[string]any{"tenant_id": "t1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if len(d.calls) != 1 || d.calls[0] != models.IntentAutopilot {
		t.Errorf("Expected autopilot dispatch, got %v", d.calls)
	}
}

func TestMemoryEndpoint(t *testing.T) {
	handler := newTestServer(t, newFakeStore(), &fakeDispatcher{}, &fakeClassifier{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory?tenant_id=t1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	if _, ok := body["recent"]; !ok {
		t.Errorf("Expected recent entries, got %v", body)
	}
}
