package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// EventHandler records a cross-handler handoff and immediately drains it:
// the event is persisted, claimed, dispatched through the master dispatcher,
// and closed with the resulting action id.
type EventHandler struct {
	deps *Deps
}

func (h *EventHandler) Intent() string { return models.IntentEvent }

func (h *EventHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	trigger := req.String("trigger")
	nextAgent := req.String("next_agent")
	if trigger == "" || nextAgent == "" {
		return models.Errored("trigger and next_agent are required"), nil
	}
	if !models.IsValidIntent(nextAgent) {
		return models.Errored("next_agent is not a valid intent: " + nextAgent), nil
	}

	params, _ := req.Context["params"].(map[string]any)
	event := &models.Event{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Trigger:   trigger,
		NextAgent: nextAgent,
		Params:    params,
		Status:    models.EventStatusPending,
		CreatedAt: h.deps.now(),
	}
	if err := h.deps.Store.CreateEvent(event); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist event: %v", err)), nil
	}

	claimed, err := h.deps.Store.ClaimEvent(event.ID)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to claim event: %v", err)), nil
	}
	if !claimed {
		// The scanner got there first; report the handoff as recorded.
		return models.Completed(map[string]any{
			"event_id": event.ID,
			"status":   string(models.EventStatusPending),
		}), nil
	}

	result, err := h.deps.Dispatcher.Dispatch(ctx, req.TenantID, nextAgent, params)
	if err != nil && result == nil {
		_ = h.deps.Store.FinishEvent(event.ID, models.EventStatusError, "")
		return models.Errored(fmt.Sprintf("handoff dispatch failed: %v", err)), nil
	}

	terminal := models.EventStatusDone
	if result.Status == "error" {
		terminal = models.EventStatusError
	}
	if err := h.deps.Store.FinishEvent(event.ID, terminal, result.ActionID); err != nil {
		h.deps.Logger.Warn("event", "Failed to close event", map[string]any{
			"tenant_id": req.TenantID,
			"event_id":  event.ID,
			"error":     err.Error(),
		})
	}

	return models.Completed(map[string]any{
		"event_id":         event.ID,
		"status":           string(terminal),
		"linked_action_id": result.ActionID,
		"handoff_status":   result.Status,
	}), nil
}
