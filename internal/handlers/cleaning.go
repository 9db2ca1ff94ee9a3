package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// CleaningHandler builds a daily cleaning plan from today's checkouts,
// arrivals and the available staff.
type CleaningHandler struct {
	deps *Deps
}

func (h *CleaningHandler) Intent() string { return models.IntentCleaning }

func (h *CleaningHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	checkouts := stringSlice(req.Context["checkouts"])
	checkins := stringSlice(req.Context["checkins"])
	staff := stringSlice(req.Context["staff"])

	prompt := fmt.Sprintf(
		"Checkouts today: %s. Arrivals today: %s. Available staff: %s. Produce a concise room-by-room cleaning plan with priorities.",
		joinOr(checkouts, "none"), joinOr(checkins, "none"), joinOr(staff, "unassigned"),
	)
	plan, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You schedule housekeeping for small hospitality teams. Be brief and concrete."},
		{Role: "user", Content: prompt},
	}, 0.3, 400)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to generate cleaning plan: %v", err)), nil
	}

	tasks := make([]string, 0, len(checkouts))
	for _, room := range checkouts {
		tasks = append(tasks, "clean "+room)
	}
	if _, err := h.deps.Store.UpdateTenantState(req.TenantID, map[string]any{
		"pending_tasks": tasks,
	}); err != nil {
		h.deps.Logger.Warn("cleaning", "Failed to update pending tasks", map[string]any{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
	}

	return models.Completed(map[string]any{
		"plan":       plan,
		"rooms":      checkouts,
		"staff":      staff,
		"task_count": len(tasks),
	}), nil
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
