package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// CheckinHandler generates a welcome message for an arriving guest, delivers
// it through the mailer, and stores the text as a checkin_confirmation
// document.
type CheckinHandler struct {
	deps *Deps
}

func (h *CheckinHandler) Intent() string { return models.IntentCheckin }

func (h *CheckinHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	guestName := req.String("guest_name")
	if guestName == "" {
		guestName = "guest"
	}
	checkinDate := req.String("checkin_date")
	email := req.String("guest_email")

	profile, err := h.deps.Store.GetPropertyProfile(req.TenantID)
	if err != nil {
		h.deps.Logger.Warn("checkin", "Failed to load property profile", map[string]any{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
	}

	propertyName, _ := profile["name"].(string)
	if propertyName == "" {
		propertyName = "our property"
	}

	message := fmt.Sprintf(
		"Dear %s, welcome to %s! Your check-in is confirmed for %s. We look forward to hosting you.",
		guestName, propertyName, checkinDate,
	)
	answer, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You write short, warm welcome messages for hotel guests. Reply with the message only."},
		{Role: "user", Content: fmt.Sprintf("Guest: %s. Property: %s. Check-in date: %s.", guestName, propertyName, checkinDate)},
	}, 0.7, 200)
	if err == nil && answer != "" {
		message = answer
	}

	delivered := false
	if email != "" {
		if err := h.deps.Mailer.Send(ctx, email, "Your check-in confirmation", message); err != nil {
			h.deps.Logger.Warn("checkin", "Mail delivery failed", map[string]any{
				"tenant_id": req.TenantID,
				"error":     err.Error(),
			})
		} else {
			delivered = true
		}
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Type:        "checkin_confirmation",
		Content:     message,
		GeneratedAt: h.deps.now(),
		LinkedRef:   req.ActionID,
	}
	if err := h.deps.Store.CreateDocument(doc); err != nil {
		return models.Errored(fmt.Sprintf("failed to store confirmation: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"document_id":     doc.ID,
		"welcome_message": message,
		"email_sent":      delivered,
	}), nil
}
