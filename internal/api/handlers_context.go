package api

import (
	"net/http"
	"strconv"
)

// handleContext handles GET and POST /api/v1/context.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenantID := s.resolveTenant(r, r.URL.Query().Get("tenant_id"))
		if tenantID == "" {
			s.respondError(w, http.StatusBadRequest, "tenant_id is required")
			return
		}
		state, err := s.store.GetTenantState(tenantID)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, state)

	case http.MethodPost:
		var req struct {
			TenantID string         `json:"tenant_id"`
			Updates  map[string]any `json:"updates"`
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
		if len(req.Updates) == 0 {
			s.respondError(w, http.StatusBadRequest, "updates is required")
			return
		}
		state, err := s.store.UpdateTenantState(tenantID, req.Updates)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, state)

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleMemory handles GET /api/v1/memory. scope selects the view:
// "recent" (default), "longterm" or "full".
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tenantID := s.resolveTenant(r, r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	limit := queryInt(r, "limit", 10)

	switch r.URL.Query().Get("scope") {
	case "longterm":
		s.respondJSON(w, http.StatusOK, map[string]any{
			"tenant_id": tenantID,
			"long_term": s.memory.LongTerm(r.Context(), tenantID),
		})
	case "full":
		snapshot, err := s.memory.Full(r.Context(), tenantID, limit)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, snapshot)
	default:
		entries, err := s.memory.Recent(tenantID, limit)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"tenant_id": tenantID,
			"recent":    entries,
		})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
