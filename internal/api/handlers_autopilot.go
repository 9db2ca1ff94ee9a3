package api

import (
	"net/http"

	"github.com/staypro/agenthub/pkg/models"
)

// handleAutopilotRun handles POST /api/v1/autopilot/run. The run goes
// through the dispatcher as the autopilot intent, so the cycle itself owns
// a ledger row like any other action.
func (s *Server) handleAutopilotRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tenantID := s.resolveTenant(r, req.TenantID)
	if tenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), tenantID, models.IntentAutopilot, map[string]any{
		"triggered_by": "api",
	})
	if err != nil && result == nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
