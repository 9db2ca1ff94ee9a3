package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// AlertHandler records an operational alert and fans a notification out to
// the dashboard.
type AlertHandler struct {
	deps *Deps
}

func (h *AlertHandler) Intent() string { return models.IntentAlert }

func (h *AlertHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	title := req.String("title")
	if title == "" {
		title = "Operational alert"
	}
	severity := normalizeSeverity(req.String("severity"))

	alert := &models.Alert{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Title:       title,
		Description: req.String("description"),
		Severity:    severity,
		Source:      req.String("source"),
		CreatedAt:   h.deps.now(),
	}
	if err := h.deps.Store.CreateAlert(alert); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist alert: %v", err)), nil
	}

	if err := h.deps.Store.CreateNotification(&models.Notification{
		TenantID: req.TenantID,
		Type:     "alert",
		Title:    title,
		Message:  alert.Description,
		Severity: severity,
	}); err != nil {
		h.deps.Logger.Warn("alert", "Notification fan-out failed", map[string]any{
			"tenant_id": req.TenantID,
			"alert_id":  alert.ID,
			"error":     err.Error(),
		})
	}

	return models.Completed(map[string]any{
		"alert_id": alert.ID,
		"title":    title,
		"severity": severity,
	}), nil
}
