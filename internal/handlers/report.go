package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// ReportHandler generates a performance report from the tenant's recent
// activity and stores it as a document.
type ReportHandler struct {
	deps *Deps
}

func (h *ReportHandler) Intent() string { return models.IntentReport }

func (h *ReportHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	period := req.String("period")
	if period == "" {
		period = "week"
	}

	state, err := h.deps.Store.GetTenantState(req.TenantID)
	if err != nil {
		return models.Errored("failed to load tenant state: " + err.Error()), nil
	}

	var activity string
	if actions, err := h.deps.Store.ListRecentActions(req.TenantID, models.ActionStatusCompleted, 10); err == nil {
		for _, a := range actions {
			activity += a.Intent + ", "
		}
	}

	prompt := fmt.Sprintf(
		"Write a short %s performance report for a property. Occupancy %d%%, season %s, negative feedback count %d. Recent completed operations: %s",
		period, state.OccupancyRate, state.Season, state.NegativeFeedback30, activity,
	)
	content, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You write concise operational reports for hospitality operators."},
		{Role: "user", Content: prompt},
	}, 0.3, 600)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to generate report: %v", err)), nil
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Type:        "report",
		Content:     content,
		GeneratedAt: h.deps.now(),
		LinkedRef:   req.ActionID,
	}
	if err := h.deps.Store.CreateDocument(doc); err != nil {
		return models.Errored(fmt.Sprintf("failed to store report: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"document_id": doc.ID,
		"period":      period,
		"report":      content,
	}), nil
}
