package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// FollowupHandler turns the tenant's latest insight into a concrete
// next-steps summary.
type FollowupHandler struct {
	deps *Deps
}

func (h *FollowupHandler) Intent() string { return models.IntentFollowup }

func (h *FollowupHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	insights, err := h.deps.Store.ListRecentInsights(req.TenantID, 1)
	if err != nil {
		return models.Errored("failed to load insights: " + err.Error()), nil
	}
	if len(insights) == 0 {
		return models.Completed(map[string]any{
			"followup": "No insights recorded yet; run an analysis first.",
		}), nil
	}

	latest := insights[0]
	prompt := fmt.Sprintf(
		"Insight: %s (category %s, severity %s). Recommendations: %s. Write a short follow-up with the next concrete steps for the operator.",
		latest.Comment, latest.Category, latest.Severity, strings.Join(latest.Recommendations, "; "),
	)
	followup, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You turn analytical insights into short, actionable task lists for property operators."},
		{Role: "user", Content: prompt},
	}, 0.4, 300)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to generate follow-up: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"insight_id": latest.ID,
		"followup":   followup,
	}), nil
}
