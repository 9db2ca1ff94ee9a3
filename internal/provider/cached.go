package provider

import (
	"context"
	"strings"
	"time"

	"github.com/staypro/agenthub/internal/cache"
	"github.com/staypro/agenthub/internal/metrics"
)

// CachedProtocol wraps a Protocol with a completion cache. Only
// deterministic requests (temperature 0) are cached; anything else goes
// straight through. Cache failures are silent misses.
type CachedProtocol struct {
	inner   Protocol
	store   cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// WithCache wraps protocol in a caching layer. A nil store returns the
// protocol unchanged.
func WithCache(protocol Protocol, store cache.Store, ttl time.Duration, m *metrics.Metrics) Protocol {
	if store == nil {
		return protocol
	}
	return &CachedProtocol{inner: protocol, store: store, ttl: ttl, metrics: m}
}

func (c *CachedProtocol) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Temperature != 0 {
		return c.inner.CreateChatCompletion(ctx, req)
	}

	key := cache.Key(req.Model, promptText(req.Messages))
	if text, ok := c.store.Get(ctx, key); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return syntheticResponse(req.Model, text), nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if text := resp.Text(); text != "" {
		c.store.Set(ctx, key, text, c.ttl)
	}
	return resp, nil
}

func (c *CachedProtocol) GetModels(ctx context.Context) ([]Model, error) {
	return c.inner.GetModels(ctx)
}

func promptText(messages []ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Role)
		b.WriteByte('\x1f')
		b.WriteString(msg.Content)
		b.WriteByte('\x1e')
	}
	return b.String()
}

func syntheticResponse(model, text string) *ChatCompletionResponse {
	resp := &ChatCompletionResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}
	resp.Choices = append(resp.Choices, struct {
		Index   int         `json:"index"`
		Message ChatMessage `json:"message"`
		Finish  string      `json:"finish_reason"`
	}{
		Message: ChatMessage{Role: "assistant", Content: text},
		Finish:  "stop",
	})
	return resp
}
