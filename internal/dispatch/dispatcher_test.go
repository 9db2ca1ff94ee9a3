package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/pkg/models"
)

// memStore is an in-memory ledger enforcing the single-transition rule the
// SQL layer enforces with WHERE status = 'pending'.
type memStore struct {
	mu          sync.Mutex
	actions     map[string]*models.Action
	failures    int
	lastActions map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		actions:     make(map[string]*models.Action),
		lastActions: make(map[string]string),
	}
}

func (s *memStore) CreateAction(action *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *action
	s.actions[action.ID] = &copied
	return nil
}

func (s *memStore) CompleteAction(actionID string, output map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[actionID]
	if !ok || a.Status != models.ActionStatusPending {
		return errors.New("action not found or already terminal")
	}
	a.Status = models.ActionStatusCompleted
	a.Output = output
	return nil
}

func (s *memStore) FailAction(actionID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[actionID]
	if !ok || a.Status != models.ActionStatusPending {
		return errors.New("action not found or already terminal")
	}
	a.Status = models.ActionStatusError
	a.Error = message
	return nil
}

func (s *memStore) SetLastAction(tenantID, intent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActions[tenantID] = intent
	return nil
}

func (s *memStore) RecordDispatchFailure(tenantID, intent, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	return nil
}

func (s *memStore) get(actionID string) *models.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions[actionID]
}

func newTestDispatcher(t *testing.T, store Store, handlers ...Handler) *Dispatcher {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return New(store, registry, logging.NewManager(nil), metrics.NewMetrics(), nil)
}

func okHandler(intent string, fields map[string]any) Handler {
	return HandlerFunc{Name: intent, Fn: func(ctx context.Context, req *Request) (models.Result, error) {
		return models.Completed(fields), nil
	}}
}

func TestDispatchCompletesAction(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, okHandler(models.IntentPricing, map[string]any{"price": 92.5}))

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentPricing, map[string]any{"property_id": "p1"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Status != "completed" {
		t.Errorf("Expected completed, got %s", res.Status)
	}

	action := store.get(res.ActionID)
	if action == nil {
		t.Fatal("Expected ledger row")
	}
	if action.Status != models.ActionStatusCompleted {
		t.Errorf("Expected completed ledger row, got %s", action.Status)
	}
	if store.lastActions["tenant-1"] != models.IntentPricing {
		t.Errorf("Expected last_action update, got %q", store.lastActions["tenant-1"])
	}
}

func TestDispatchHandlerErrorFailsAction(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, HandlerFunc{Name: models.IntentSupport, Fn: func(ctx context.Context, req *Request) (models.Result, error) {
		return nil, errors.New("upstream unavailable")
	}})

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentSupport, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Status != "error" || res.Message != "upstream unavailable" {
		t.Errorf("Unexpected result: %+v", res)
	}

	action := store.get(res.ActionID)
	if action.Status != models.ActionStatusError {
		t.Errorf("Expected error ledger row, got %s", action.Status)
	}
	if store.failures != 1 {
		t.Errorf("Expected 1 recorded failure, got %d", store.failures)
	}
	if store.lastActions["tenant-1"] != "" {
		t.Error("Failed dispatch must not update last_action")
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, HandlerFunc{Name: models.IntentCleaning, Fn: func(ctx context.Context, req *Request) (models.Result, error) {
		panic("nil map write")
	}})

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentCleaning, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Status != "error" {
		t.Errorf("Expected error result after panic, got %s", res.Status)
	}
	if store.get(res.ActionID).Status != models.ActionStatusError {
		t.Error("Panic must still close the ledger row")
	}
}

func TestDispatchRejectsUnknownIntent(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store)

	res, err := d.Dispatch(context.Background(), "tenant-1", "make-coffee", nil)
	if !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("Expected ErrUnknownIntent, got %v", err)
	}
	if res == nil || res.Status != "error" {
		t.Fatalf("Expected error result, got %+v", res)
	}
	action := store.get(res.ActionID)
	if action == nil || action.Status != models.ActionStatusError {
		t.Error("Rejected dispatch must still leave an errored ledger row")
	}
}

func TestDispatchRejectsUnregisteredIntent(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, okHandler(models.IntentPricing, nil))

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentUpsell, nil)
	if !errors.Is(err, ErrUnsupportedIntent) {
		t.Fatalf("Expected ErrUnsupportedIntent, got %v", err)
	}
	action := store.get(res.ActionID)
	if action == nil || action.Status != models.ActionStatusError {
		t.Error("Rejected dispatch must still leave an errored ledger row")
	}
}

func TestDispatchRequiresTenant(t *testing.T) {
	d := newTestDispatcher(t, newMemStore(), okHandler(models.IntentPricing, nil))
	if _, err := d.Dispatch(context.Background(), "", models.IntentPricing, nil); err == nil {
		t.Error("Expected error for missing tenant")
	}
}

func TestDispatchIsReentrant(t *testing.T) {
	store := newMemStore()
	var d *Dispatcher

	delegating := HandlerFunc{Name: models.IntentAutopilot, Fn: func(ctx context.Context, req *Request) (models.Result, error) {
		inner, err := d.Dispatch(ctx, req.TenantID, models.IntentPricing, nil)
		if err != nil {
			return nil, err
		}
		return models.Completed(map[string]any{"delegated_action": inner.ActionID}), nil
	}}

	d = newTestDispatcher(t, store, delegating, okHandler(models.IntentPricing, map[string]any{"price": 80.0}))

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentAutopilot, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Status != "completed" {
		t.Fatalf("Expected completed, got %+v", res)
	}
	if len(store.actions) != 2 {
		t.Errorf("Expected 2 ledger rows (outer and inner), got %d", len(store.actions))
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(okHandler(models.IntentPricing, nil), okHandler(models.IntentPricing, nil))
	if err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestDefaultStatusIsCompleted(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, HandlerFunc{Name: models.IntentFAQ, Fn: func(ctx context.Context, req *Request) (models.Result, error) {
		return models.Result{"answer": "checkout is at 10am"}, nil
	}})

	res, err := d.Dispatch(context.Background(), "tenant-1", models.IntentFAQ, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Status != "completed" {
		t.Errorf("Result without explicit status should complete, got %s", res.Status)
	}
}
