package api

import (
	"net/http"

	"github.com/staypro/agenthub/pkg/models"
)

// handleActions handles GET /api/v1/actions.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tenantID := s.resolveTenant(r, r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	status := models.ActionStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 20)

	actions, err := s.store.ListRecentActions(tenantID, status, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"actions":   actions,
	})
}

// handleAction handles GET /api/v1/actions/{id}.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actionID := extractID(r.URL.Path, "/api/v1/actions")
	if actionID == "" {
		s.respondError(w, http.StatusBadRequest, "action id is required")
		return
	}

	action, err := s.store.GetAction(actionID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Action not found")
		return
	}

	// With auth enabled a tenant must not read another tenant's ledger.
	if claims := requestClaims(r); claims != nil && claims.TenantID != "" && claims.TenantID != action.TenantID {
		s.respondError(w, http.StatusNotFound, "Action not found")
		return
	}

	s.respondJSON(w, http.StatusOK, action)
}

// handleLogs handles GET /api/v1/logs.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	tenantID := s.resolveTenant(r, q.Get("tenant_id"))
	entries := s.logger.GetRecent(queryInt(r, "limit", 100), q.Get("level"), q.Get("source"), tenantID)
	s.respondJSON(w, http.StatusOK, map[string]any{"logs": entries})
}
