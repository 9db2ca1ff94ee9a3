package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/pkg/models"
)

// failureRetention is how long failure-registry rows are kept before the
// daily job prunes them.
const failureRetention = 48 * time.Hour

// Store is the database slice the background jobs use.
type Store interface {
	ListPendingEvents(tenantID string, limit int) ([]*models.Event, error)
	ClaimEvent(eventID string) (bool, error)
	FinishEvent(eventID string, status models.EventStatus, linkedActionID string) error
	ListTenantIDs() ([]string, error)
	PruneFailures(retention time.Duration) (int64, error)
}

// Dispatcher re-enters the dispatch loop for drained events and daily jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error)
}

// Scheduler runs the cron-driven background jobs: the pending-event scanner
// and the daily task generator.
type Scheduler struct {
	cron       *cron.Cron
	store      Store
	dispatcher Dispatcher
	logger     *logging.Manager
}

// New creates a scheduler with second-granularity cron specs.
func New(store Store, dispatcher Dispatcher, logger *logging.Manager) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start registers the jobs and starts the cron loop. Specs use the
// 6-field (seconds-first) format; "@every" shorthands also work.
func (s *Scheduler) Start(eventScanSpec, dailyTasksSpec string) error {
	if _, err := s.cron.AddFunc(eventScanSpec, s.ScanPendingEvents); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(dailyTasksSpec, s.RunDailyTasks); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler", "Background jobs started", map[string]any{
		"event_scan":  eventScanSpec,
		"daily_tasks": dailyTasksSpec,
	})
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScanPendingEvents drains pending deferred handoffs across all tenants.
// Claiming transitions the event to dispatched, so a concurrent scanner or
// the event handler itself can never double-dispatch.
func (s *Scheduler) ScanPendingEvents() {
	events, err := s.store.ListPendingEvents("", 50)
	if err != nil {
		s.logger.Error("scheduler", "Event scan failed", map[string]any{"error": err.Error()})
		return
	}

	for _, event := range events {
		claimed, err := s.store.ClaimEvent(event.ID)
		if err != nil {
			s.logger.Error("scheduler", "Failed to claim event", map[string]any{
				"event_id": event.ID,
				"error":    err.Error(),
			})
			continue
		}
		if !claimed {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		result, err := s.dispatcher.Dispatch(ctx, event.TenantID, event.NextAgent, event.Params)
		cancel()

		status := models.EventStatusDone
		actionID := ""
		if result != nil {
			actionID = result.ActionID
			if result.Status == "error" {
				status = models.EventStatusError
			}
		}
		if err != nil && result == nil {
			status = models.EventStatusError
		}

		if err := s.store.FinishEvent(event.ID, status, actionID); err != nil {
			s.logger.Error("scheduler", "Failed to close event", map[string]any{
				"event_id": event.ID,
				"error":    err.Error(),
			})
		}
	}
}

// RunDailyTasks generates the morning housekeeping plan for every tenant and
// prunes stale failure-registry rows.
func (s *Scheduler) RunDailyTasks() {
	if pruned, err := s.store.PruneFailures(failureRetention); err != nil {
		s.logger.Warn("scheduler", "Failure pruning failed", map[string]any{"error": err.Error()})
	} else if pruned > 0 {
		s.logger.Info("scheduler", "Pruned stale failures", map[string]any{"count": pruned})
	}

	tenants, err := s.store.ListTenantIDs()
	if err != nil {
		s.logger.Error("scheduler", "Daily tasks failed to list tenants", map[string]any{"error": err.Error()})
		return
	}

	for _, tenantID := range tenants {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		_, err := s.dispatcher.Dispatch(ctx, tenantID, models.IntentCleaning, map[string]any{
			"triggered_by": "daily_tasks",
		})
		cancel()
		if err != nil {
			s.logger.Warn("scheduler", "Daily task dispatch failed", map[string]any{
				"tenant_id": tenantID,
				"error":     err.Error(),
			})
		}
	}
}
