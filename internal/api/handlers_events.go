package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/pkg/models"
)

// handleEvents handles POST (schedule a handoff) and GET (list) on
// /api/v1/events. Events created here stay pending until the scheduler
// claims them.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID  string         `json:"tenant_id"`
			Trigger   string         `json:"trigger"`
			NextAgent string         `json:"next_agent"`
			Params    map[string]any `json:"params"`
		}
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		tenantID := s.resolveTenant(r, req.TenantID)
		if tenantID == "" || req.Trigger == "" || req.NextAgent == "" {
			s.respondError(w, http.StatusBadRequest, "tenant_id, trigger and next_agent are required")
			return
		}
		if !models.IsValidIntent(req.NextAgent) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown next_agent: %s", req.NextAgent))
			return
		}

		event := &models.Event{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Trigger:   req.Trigger,
			NextAgent: req.NextAgent,
			Params:    req.Params,
			Status:    models.EventStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateEvent(event); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, event)

	case http.MethodGet:
		tenantID := s.resolveTenant(r, r.URL.Query().Get("tenant_id"))
		if tenantID == "" {
			s.respondError(w, http.StatusBadRequest, "tenant_id is required")
			return
		}
		status := models.EventStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = models.EventStatusPending
		}
		events, err := s.store.ListEvents(tenantID, status, queryInt(r, "limit", 50))
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"tenant_id": tenantID,
			"events":    events,
		})

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
