package provider

import (
	"context"
	"testing"
	"time"

	"github.com/staypro/agenthub/internal/cache"
	"github.com/staypro/agenthub/internal/metrics"
)

type countingProtocol struct {
	calls int
	text  string
}

func (p *countingProtocol) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	p.calls++
	return syntheticResponse(req.Model, p.text), nil
}

func (p *countingProtocol) GetModels(ctx context.Context) ([]Model, error) {
	return nil, nil
}

func TestCachedProtocolDeterministicHit(t *testing.T) {
	store := cache.NewMemoryStore(100)
	defer store.Close()

	inner := &countingProtocol{text: "pricing"}
	cached := WithCache(inner, store, time.Minute, metrics.NewMetrics())

	req := &ChatCompletionRequest{
		Model:       "gpt-4o",
		Messages:    []ChatMessage{{Role: "user", Content: "classify this"}},
		Temperature: 0,
	}

	for i := 0; i < 3; i++ {
		resp, err := cached.CreateChatCompletion(context.Background(), req)
		if err != nil {
			t.Fatalf("CreateChatCompletion failed: %v", err)
		}
		if resp.Text() != "pricing" {
			t.Fatalf("Expected cached answer, got %q", resp.Text())
		}
	}

	if inner.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls)
	}
}

func TestCachedProtocolSkipsNonDeterministic(t *testing.T) {
	store := cache.NewMemoryStore(100)
	defer store.Close()

	inner := &countingProtocol{text: "a creative answer"}
	cached := WithCache(inner, store, time.Minute, metrics.NewMetrics())

	req := &ChatCompletionRequest{
		Model:       "gpt-4o",
		Messages:    []ChatMessage{{Role: "user", Content: "write a poem"}},
		Temperature: 0.8,
	}

	for i := 0; i < 2; i++ {
		if _, err := cached.CreateChatCompletion(context.Background(), req); err != nil {
			t.Fatalf("CreateChatCompletion failed: %v", err)
		}
	}

	if inner.calls != 2 {
		t.Errorf("Temperature > 0 must bypass the cache, got %d calls", inner.calls)
	}
	if store.Len() != 0 {
		t.Errorf("Nothing should be cached, got %d entries", store.Len())
	}
}

func TestWithCacheNilStore(t *testing.T) {
	inner := &countingProtocol{}
	if got := WithCache(inner, nil, time.Minute, nil); got != Protocol(inner) {
		t.Error("Nil store must return the protocol unchanged")
	}
}

func TestPromptTextDistinguishesRoles(t *testing.T) {
	a := promptText([]ChatMessage{{Role: "system", Content: "x"}, {Role: "user", Content: "y"}})
	b := promptText([]ChatMessage{{Role: "system", Content: "xy"}, {Role: "user", Content: ""}})
	if a == b {
		t.Error("Different message splits must not collide")
	}
}
