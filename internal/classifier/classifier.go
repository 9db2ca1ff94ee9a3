package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// HistoryStore records classifier decisions for audit.
type HistoryStore interface {
	RecordIntentDecision(tenantID, message, intent, model string) error
}

// Classifier maps a free-text operator message onto the closed intent set.
// Model tiers are tried in fixed order with one attempt each; any answer
// outside the set falls through to the next tier, and exhaustion yields
// "unknown" rather than an error.
type Classifier struct {
	providers *provider.Registry
	history   HistoryStore
	logger    *logging.Manager
	metrics   *metrics.Metrics
}

// New creates a classifier. history may be nil to skip audit records.
func New(providers *provider.Registry, history HistoryStore, logger *logging.Manager, m *metrics.Metrics) *Classifier {
	return &Classifier{
		providers: providers,
		history:   history,
		logger:    logger,
		metrics:   m,
	}
}

const systemPrompt = `You are an intent classifier for a hospitality operations hub.
Classify the user's message into exactly one intent from this list:
%s
Reply with the intent name only, nothing else. If no intent fits, reply "unknown".`

// Classify returns the detected intent for a message, or "unknown".
func (c *Classifier) Classify(ctx context.Context, tenantID, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.IntentUnknown
	}

	prompt := fmt.Sprintf(systemPrompt, strings.Join(models.ValidIntents, ", "))
	messages := []provider.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: message},
	}

	for _, tier := range c.providers.Tiers() {
		if ctx.Err() != nil {
			return models.IntentUnknown
		}

		resp, err := tier.Protocol.CreateChatCompletion(ctx, &provider.ChatCompletionRequest{
			Model:       tier.Model,
			Messages:    messages,
			Temperature: 0,
			MaxTokens:   16,
		})
		c.metrics.ProviderRequests.WithLabelValues(tier.Name, tier.Model).Inc()
		if err != nil {
			c.metrics.ProviderErrors.WithLabelValues(tier.Name, tier.Model).Inc()
			c.logger.Warn("classifier", "Model attempt failed", map[string]any{
				"tenant_id": tenantID,
				"model":     tier.Model,
				"error":     err.Error(),
			})
			continue
		}

		intent := Normalize(resp.Text())
		if !models.IsValidIntent(intent) {
			c.logger.Debug("classifier", "Model returned out-of-set answer", map[string]any{
				"tenant_id": tenantID,
				"model":     tier.Model,
				"answer":    intent,
			})
			continue
		}

		c.record(tenantID, message, intent, tier.Model)
		c.metrics.ClassificationsTotal.WithLabelValues(intent, tier.Model).Inc()
		return intent
	}

	c.record(tenantID, message, models.IntentUnknown, "")
	c.metrics.ClassifierFallbacks.Inc()
	c.logger.Info("classifier", "No model produced a valid intent", map[string]any{
		"tenant_id": tenantID,
	})
	return models.IntentUnknown
}

func (c *Classifier) record(tenantID, message, intent, model string) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordIntentDecision(tenantID, message, intent, model); err != nil {
		c.logger.Warn("classifier", "Failed to record intent decision", map[string]any{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
}

// Normalize cleans a raw model answer down to a bare intent name: lowercase,
// surrounding whitespace, quotes and backticks removed, an "intent:" label
// stripped, and a trailing period dropped.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`")
	s = strings.TrimPrefix(s, "intent:")
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return s
}
