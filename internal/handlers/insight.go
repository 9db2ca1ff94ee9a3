package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// InsightHandler analyzes recent tenant activity and produces a scored,
// categorized insight record.
type InsightHandler struct {
	deps *Deps
}

func (h *InsightHandler) Intent() string { return models.IntentInsight }

// insightAnswer is the JSON shape requested from the model.
type insightAnswer struct {
	Comment         string   `json:"comment"`
	Category        string   `json:"category"`
	Severity        string   `json:"severity"`
	Recommendations []string `json:"recommendations"`
	AgentsToTrigger []string `json:"agents_to_trigger"`
}

func (h *InsightHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	evidence := h.gatherEvidence(req.TenantID)

	raw, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: `You analyze hospitality operations data and answer with one JSON object:
{"comment": "...", "category": "opportunity|warning|operational|strategic", "severity": "low|medium|high", "recommendations": ["..."], "agents_to_trigger": ["..."]}`},
		{Role: "user", Content: evidence},
	}, 0.3, 500)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to generate insight: %v", err)), nil
	}

	answer := parseInsightAnswer(raw)
	if answer.Comment == "" {
		return models.Errored("model returned no usable insight"), nil
	}

	duplicate, err := h.deps.Store.HasRecentSimilarInsight(req.TenantID, answer.Comment, 40, 10)
	if err != nil {
		h.deps.Logger.Warn("insight", "Duplicate check failed", map[string]any{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
	}

	agents := make([]string, 0, len(answer.AgentsToTrigger))
	for _, agent := range answer.AgentsToTrigger {
		if models.IsValidIntent(agent) {
			agents = append(agents, agent)
		}
	}

	insight := &models.Insight{
		ID:              uuid.New().String(),
		TenantID:        req.TenantID,
		SourceAgent:     models.IntentInsight,
		Comment:         answer.Comment,
		Category:        normalizeCategory(answer.Category),
		Severity:        normalizeSeverity(answer.Severity),
		Recommendations: answer.Recommendations,
		AgentsToTrigger: agents,
		Duplicate:       duplicate,
		CreatedAt:       h.deps.now(),
	}
	insight.PriorityScore = ScoreInsight(insight)

	if err := h.deps.Store.CreateInsight(insight); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist insight: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"insight_id":        insight.ID,
		"comment":           insight.Comment,
		"category":          insight.Category,
		"severity":          insight.Severity,
		"recommendations":   insight.Recommendations,
		"agents_to_trigger": insight.AgentsToTrigger,
		"priority_score":    insight.PriorityScore,
		"duplicate":         insight.Duplicate,
	}), nil
}

// gatherEvidence assembles a compact textual view of recent tenant activity
// for the model.
func (h *InsightHandler) gatherEvidence(tenantID string) string {
	var b strings.Builder

	if state, err := h.deps.Store.GetTenantState(tenantID); err == nil {
		fmt.Fprintf(&b, "Occupancy: %d%%. Season: %s. AI mode: %s. Negative feedback last 30 days: %d.\n",
			state.OccupancyRate, state.Season, state.AIMode, state.NegativeFeedback30)
	}
	if profile, err := h.deps.Store.GetPropertyProfile(tenantID); err == nil && len(profile) > 0 {
		if data, err := json.Marshal(profile); err == nil {
			fmt.Fprintf(&b, "Property profile: %s\n", data)
		}
	}
	if actions, err := h.deps.Store.ListRecentActions(tenantID, models.ActionStatusCompleted, 5); err == nil {
		for _, a := range actions {
			fmt.Fprintf(&b, "Recent action: %s\n", a.Intent)
		}
	}
	if events, err := h.deps.Store.ListEvents(tenantID, "", 5); err == nil {
		for _, e := range events {
			fmt.Fprintf(&b, "Event: %s -> %s (%s)\n", e.Trigger, e.NextAgent, e.Status)
		}
	}
	if feedback, err := h.deps.Store.ListRecentFeedback(tenantID, 5); err == nil {
		for _, fb := range feedback {
			fmt.Fprintf(&b, "Guest feedback (%d/5): %s\n", fb.Rating, fb.Comment)
		}
	}
	if docs, err := h.deps.Store.ListRecentDocuments(tenantID, 3); err == nil {
		for _, doc := range docs {
			fmt.Fprintf(&b, "Document (%s) generated\n", doc.Type)
		}
	}

	if b.Len() == 0 {
		return "No recent activity recorded for this property."
	}
	return b.String()
}

// parseInsightAnswer decodes the model's JSON, tolerating fenced code blocks
// and trailing prose.
func parseInsightAnswer(raw string) insightAnswer {
	var answer insightAnswer

	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	if json.Unmarshal([]byte(s), &answer) != nil {
		// Unstructured answer: keep it as the comment with defaults.
		answer = insightAnswer{Comment: strings.TrimSpace(raw)}
	}
	return answer
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case models.InsightCategoryOpportunity:
		return models.InsightCategoryOpportunity
	case models.InsightCategoryWarning:
		return models.InsightCategoryWarning
	case models.InsightCategoryStrategic:
		return models.InsightCategoryStrategic
	default:
		return models.InsightCategoryOperational
	}
}

func normalizeSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case models.SeverityHigh:
		return models.SeverityHigh
	case models.SeverityLow:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

// ScoreInsight computes the priority score: base 50, +25 for high severity,
// +15 for opportunities, +10 when there are at least two recommendations,
// capped at 100.
func ScoreInsight(insight *models.Insight) int {
	score := 50
	if insight.Severity == models.SeverityHigh {
		score += 25
	}
	if insight.Category == models.InsightCategoryOpportunity {
		score += 15
	}
	if len(insight.Recommendations) >= 2 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
