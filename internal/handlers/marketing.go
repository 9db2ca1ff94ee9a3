package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// MarketingHandler drafts a campaign email and stores it as a document for
// operator review before sending.
type MarketingHandler struct {
	deps *Deps
}

func (h *MarketingHandler) Intent() string { return models.IntentMarketing }

func (h *MarketingHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	goal := req.String("goal")
	if goal == "" {
		goal = "fill low-occupancy dates"
	}
	audience := req.String("audience")
	if audience == "" {
		audience = "past guests"
	}

	state, err := h.deps.Store.GetTenantState(req.TenantID)
	if err != nil {
		return models.Errored("failed to load tenant state: " + err.Error()), nil
	}

	prompt := fmt.Sprintf(
		"Draft a campaign email. Goal: %s. Audience: %s. Occupancy is %d%% in %s season. Reply with SUBJECT: <subject> on the first line, then the body.",
		goal, audience, state.OccupancyRate, state.Season,
	)
	draft, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You write persuasive but honest marketing emails for independent properties."},
		{Role: "user", Content: prompt},
	}, 0.7, 500)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to draft campaign: %v", err)), nil
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Type:        "campaign_draft",
		Content:     draft,
		GeneratedAt: h.deps.now(),
		LinkedRef:   req.ActionID,
	}
	if err := h.deps.Store.CreateDocument(doc); err != nil {
		return models.Errored(fmt.Sprintf("failed to store campaign draft: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"document_id": doc.ID,
		"goal":        goal,
		"audience":    audience,
		"draft":       draft,
	}), nil
}
