package handlers

import (
	"context"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// UpsellHandler derives upgrade suggestions from the available upgrades and
// services. Pure rules, no LLM call: suggestions come straight from what the
// property can actually sell.
type UpsellHandler struct {
	deps *Deps
}

func (h *UpsellHandler) Intent() string { return models.IntentUpsell }

func (h *UpsellHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	upgrades := stringSlice(req.Context["available_upgrades"])
	services := stringSlice(req.Context["available_services"])

	state, err := h.deps.Store.GetTenantState(req.TenantID)
	if err != nil {
		return models.Errored("failed to load tenant state: " + err.Error()), nil
	}

	suggestions := make([]string, 0, len(upgrades)+len(services))
	for _, upgrade := range upgrades {
		suggestions = append(suggestions, "Offer room upgrade: "+upgrade)
	}
	for _, service := range services {
		suggestions = append(suggestions, "Propose service: "+service)
	}
	if state.CurrentGuest != nil {
		for _, tag := range state.CurrentGuest.Tags {
			if tag == "returning" {
				suggestions = append(suggestions, "Apply returning-guest discount on any accepted upgrade")
				break
			}
		}
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "No upgrades configured; propose late checkout")
	}

	return models.Completed(map[string]any{
		"suggestions": suggestions,
		"ai_mode":     state.AIMode,
	}), nil
}
