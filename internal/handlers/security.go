package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// SecurityHandler turns a reported security concern into a severity-graded
// recommendation, persisted as an alert.
type SecurityHandler struct {
	deps *Deps
}

func (h *SecurityHandler) Intent() string { return models.IntentSecurity }

func (h *SecurityHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	concern := req.String("concern")
	if concern == "" {
		return models.Errored("concern is required"), nil
	}
	severity := normalizeSeverity(req.String("severity"))

	var recommendation string
	switch severity {
	case models.SeverityHigh:
		recommendation = "Notify on-site staff immediately, verify guest identities, and review access logs for the last 24 hours."
	case models.SeverityMedium:
		recommendation = "Review the incident with staff within the day and check the affected area's access records."
	default:
		recommendation = "Log the report and monitor for recurrence."
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Title:       "Security: " + concern,
		Description: recommendation,
		Severity:    severity,
		Source:      models.IntentSecurity,
		CreatedAt:   h.deps.now(),
	}
	if err := h.deps.Store.CreateAlert(alert); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist security alert: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"alert_id":       alert.ID,
		"severity":       severity,
		"recommendation": recommendation,
	}), nil
}
