package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// SupportHandler answers guest issues. Frequent issues are answered from a
// keyword table without an LLM round trip; everything else goes to the model.
// Every issue becomes a ticket.
type SupportHandler struct {
	deps *Deps
}

func (h *SupportHandler) Intent() string { return models.IntentSupport }

// fallbackAnswers maps issue keywords to canned responses.
var fallbackAnswers = []struct {
	keyword string
	answer  string
}{
	{"wifi", "The Wi-Fi network name and password are printed on the card next to the router and in your welcome booklet."},
	{"checkout", "Checkout is at 10:00. Leave the keys on the table and close the door behind you."},
	{"check-in", "Self check-in is available from 15:00 using the code we sent you by message."},
	{"parking", "Free parking is available in the courtyard behind the building; the gate code is in your welcome message."},
	{"heating", "The thermostat is in the hallway; hold the power button for three seconds to switch modes."},
	{"hot water", "Hot water is always on; let the tap run for up to a minute on first use."},
}

func classifyPriority(issue string) string {
	lower := strings.ToLower(issue)
	for _, urgent := range []string{"flood", "fire", "leak", "smoke", "locked out", "no heat", "broken door"} {
		if strings.Contains(lower, urgent) {
			return models.SeverityHigh
		}
	}
	for _, medium := range []string{"not working", "broken", "cold", "noise"} {
		if strings.Contains(lower, medium) {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}

func (h *SupportHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	issue := req.String("issue")
	if issue == "" {
		return models.Errored("issue is required"), nil
	}
	priority := classifyPriority(issue)

	var response, handledBy string
	lower := strings.ToLower(issue)
	for _, fa := range fallbackAnswers {
		if strings.Contains(lower, fa.keyword) {
			response = fa.answer
			handledBy = "fallback"
			break
		}
	}

	if response == "" {
		answer, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
			{Role: "system", Content: "You are a helpful guest support agent for a short-stay property. Answer briefly and practically."},
			{Role: "user", Content: issue},
		}, 0.4, 300)
		if err != nil {
			return models.Errored(fmt.Sprintf("failed to answer issue: %v", err)), nil
		}
		response = answer
		handledBy = "llm"
	}

	ticket := &models.SupportTicket{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Issue:     issue,
		Response:  response,
		HandledBy: handledBy,
		Priority:  priority,
		CreatedAt: h.deps.now(),
	}
	if err := h.deps.Store.CreateSupportTicket(ticket); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist ticket: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"ticket_id":  ticket.ID,
		"response":   response,
		"priority":   priority,
		"handled_by": handledBy,
	}), nil
}
