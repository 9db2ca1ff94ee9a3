package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// GenericHandler covers the intents without a dedicated workflow. Feedback
// and context get small concrete behaviors; the advisory intents (conversion,
// revenue, bookingfix) get a state-grounded LLM answer.
type GenericHandler struct {
	deps   *Deps
	intent string
}

// NewGenericHandler binds the generic workflow to one intent name.
func NewGenericHandler(deps *Deps, intent string) *GenericHandler {
	return &GenericHandler{deps: deps, intent: intent}
}

func (h *GenericHandler) Intent() string { return h.intent }

func (h *GenericHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	switch h.intent {
	case models.IntentContext:
		return h.handleContext(req)
	case models.IntentFeedback:
		return h.handleFeedback(req)
	default:
		return h.handleAdvisory(ctx, req)
	}
}

// handleContext merges any provided updates into the tenant state and
// returns the resulting snapshot.
func (h *GenericHandler) handleContext(req *dispatch.Request) (models.Result, error) {
	updates, _ := req.Context["updates"].(map[string]any)

	var state *models.TenantState
	var err error
	if len(updates) > 0 {
		state, err = h.deps.Store.UpdateTenantState(req.TenantID, updates)
	} else {
		state, err = h.deps.Store.GetTenantState(req.TenantID)
	}
	if err != nil {
		return models.Errored("failed to access tenant state: " + err.Error()), nil
	}

	return models.Completed(map[string]any{
		"occupancy_rate":        state.OccupancyRate,
		"season":                state.Season,
		"ai_mode":               state.AIMode,
		"pending_tasks":         state.PendingTasks,
		"last_action":           state.LastAction,
		"negative_feedback_30d": state.NegativeFeedback30,
	}), nil
}

// handleFeedback records a guest comment. Ratings of 2 or lower bump the
// 30-day negative feedback counter the autopilot penalizes on.
func (h *GenericHandler) handleFeedback(req *dispatch.Request) (models.Result, error) {
	comment := req.String("comment")
	if comment == "" {
		return models.Errored("comment is required"), nil
	}

	rating := 0
	if r, ok := req.Float("rating"); ok {
		rating = int(r)
	}

	fb := &models.Feedback{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Comment:   comment,
		Rating:    rating,
		CreatedAt: h.deps.now(),
	}
	if err := h.deps.Store.CreateFeedback(fb); err != nil {
		return models.Errored(fmt.Sprintf("failed to store feedback: %v", err)), nil
	}

	negative := rating > 0 && rating <= 2
	if negative {
		state, err := h.deps.Store.GetTenantState(req.TenantID)
		if err == nil {
			_, err = h.deps.Store.UpdateTenantState(req.TenantID, map[string]any{
				"negative_feedback_30d": state.NegativeFeedback30 + 1,
			})
		}
		if err != nil {
			h.deps.Logger.Warn("feedback", "Failed to bump negative counter", map[string]any{
				"tenant_id": req.TenantID,
				"error":     err.Error(),
			})
		}
	}

	return models.Completed(map[string]any{
		"feedback_id": fb.ID,
		"rating":      rating,
		"negative":    negative,
	}), nil
}

func (h *GenericHandler) handleAdvisory(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	question := req.String("question")
	if question == "" {
		question = "Give the operator the most useful " + h.intent + " advice for the current situation."
	}

	state, err := h.deps.Store.GetTenantState(req.TenantID)
	if err != nil {
		return models.Errored("failed to load tenant state: " + err.Error()), nil
	}

	prompt := fmt.Sprintf(
		"Topic: %s. Occupancy %d%%, season %s, AI mode %s, negative feedback last 30 days %d. %s",
		h.intent, state.OccupancyRate, state.Season, state.AIMode, state.NegativeFeedback30, question,
	)
	answer, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You advise hospitality operators. Be specific and brief."},
		{Role: "user", Content: prompt},
	}, 0.4, 400)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to generate advice: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"topic":  h.intent,
		"advice": answer,
	}), nil
}
