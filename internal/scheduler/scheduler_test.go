package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/pkg/models"
)

type fakeStore struct {
	events  map[string]*models.Event
	tenants []string
	pruned  bool
}

func newFakeStore(events ...*models.Event) *fakeStore {
	f := &fakeStore{events: make(map[string]*models.Event)}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeStore) ListPendingEvents(tenantID string, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.events {
		if e.Status == models.EventStatusPending {
			out = append(out, e)
		}
	}
	return out, nil
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

func (f *fakeStore) ListTenantIDs() ([]string, error) {
	return f.tenants, nil
}

func (f *fakeStore) PruneFailures(retention time.Duration) (int64, error) {
	f.pruned = true
	return 3, nil
}

type fakeDispatcher struct {
	calls  []string
	status string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error) {
	f.calls = append(f.calls, intent)
	status := f.status
	if status == "" {
		status = "completed"
	}
	return &models.DispatchResult{Status: status, ActionID: "a-1"}, nil
}

func TestScanDispatchesPendingEvents(t *testing.T) {
	event := &models.Event{
		ID: "e1", TenantID: "tenant-1", Trigger: "post_checkin",
		NextAgent: models.IntentUpsell, Status: models.EventStatusPending,
	}
	store := newFakeStore(event)
	dispatcher := &fakeDispatcher{}
	s := New(store, dispatcher, logging.NewManager(nil))

	s.ScanPendingEvents()

	if len(dispatcher.calls) != 1 || dispatcher.calls[0] != models.IntentUpsell {
		t.Errorf("Expected one upsell dispatch, got %v", dispatcher.calls)
	}
	if event.Status != models.EventStatusDone || event.LinkedActionID != "a-1" {
		t.Errorf("Event not closed: %+v", event)
	}
}

func TestScanSkipsNonPending(t *testing.T) {
	event := &models.Event{ID: "e1", TenantID: "t", NextAgent: models.IntentUpsell, Status: models.EventStatusDone}
	dispatcher := &fakeDispatcher{}
	s := New(newFakeStore(event), dispatcher, logging.NewManager(nil))

	s.ScanPendingEvents()
	if len(dispatcher.calls) != 0 {
		t.Errorf("Done events must not be re-dispatched, got %v", dispatcher.calls)
	}
}

func TestScanMarksFailedDispatch(t *testing.T) {
	event := &models.Event{
		ID: "e1", TenantID: "t", NextAgent: models.IntentPricing, Status: models.EventStatusPending,
	}
	store := newFakeStore(event)
	s := New(store, &fakeDispatcher{status: "error"}, logging.NewManager(nil))

	s.ScanPendingEvents()
	if event.Status != models.EventStatusError {
		t.Errorf("Expected error status, got %s", event.Status)
	}
}

func TestDailyTasksFanOut(t *testing.T) {
	store := newFakeStore()
	store.tenants = []string{"t1", "t2"}
	dispatcher := &fakeDispatcher{}
	s := New(store, dispatcher, logging.NewManager(nil))

	s.RunDailyTasks()

	if !store.pruned {
		t.Error("Expected failure pruning")
	}
	if len(dispatcher.calls) != 2 {
		t.Errorf("Expected 2 daily dispatches, got %v", dispatcher.calls)
	}
}
