package handlers

import (
	"context"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// AutopilotHandler delegates to the decision engine so autopilot cycles are
// dispatchable like any other intent.
type AutopilotHandler struct {
	deps *Deps
}

func (h *AutopilotHandler) Intent() string { return models.IntentAutopilot }

func (h *AutopilotHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	if h.deps.Autopilot == nil {
		return models.Errored("autopilot engine is not configured"), nil
	}
	return h.deps.Autopilot.Run(ctx, req.TenantID)
}
