package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// FAQHandler answers a guest question grounded in the property profile.
type FAQHandler struct {
	deps *Deps
}

func (h *FAQHandler) Intent() string { return models.IntentFAQ }

func (h *FAQHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	question := req.String("question")
	if question == "" {
		return models.Errored("question is required"), nil
	}

	grounding := "No property profile is available; answer generally and say so."
	if profile, err := h.deps.Store.GetPropertyProfile(req.TenantID); err == nil && len(profile) > 0 {
		if data, err := json.Marshal(profile); err == nil {
			grounding = "Property facts: " + string(data)
		}
	}

	answer, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You answer guest questions about a property. Use only the provided facts; if the facts do not cover the question, say you will check with the host. " + grounding},
		{Role: "user", Content: question},
	}, 0.2, 300)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to answer question: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"question": question,
		"answer":   answer,
	}), nil
}
