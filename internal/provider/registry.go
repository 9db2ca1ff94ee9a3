package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Tier is one registered provider with its preferred model. Tiers are
// ordered: callers fall through them in registration order ("primary" first,
// then "fallback" tiers).
type Tier struct {
	Name     string
	Model    string
	Protocol Protocol
}

// Registry manages registered LLM providers in fallback order.
type Registry struct {
	mu     sync.RWMutex
	tiers  []*Tier
	byName map[string]*Tier
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Tier),
	}
}

// Register appends a provider tier. Registration order defines fallback
// order.
func (r *Registry) Register(name, model string, protocol Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	tier := &Tier{Name: name, Model: model, Protocol: protocol}
	r.tiers = append(r.tiers, tier)
	r.byName[name] = tier
	return nil
}

// Get retrieves a registered tier by name.
func (r *Registry) Get(name string) (*Tier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tier, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return tier, nil
}

// Tiers returns the registered tiers in fallback order.
func (r *Registry) Tiers() []*Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// Len returns the number of registered tiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tiers)
}

// Complete tries each tier in order with a single attempt and returns the
// first non-empty completion along with the tier that produced it. All tier
// errors are joined when every tier fails.
func (r *Registry) Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, string, error) {
	tiers := r.Tiers()
	if len(tiers) == 0 {
		return "", "", errors.New("no providers registered")
	}

	var errs []error
	for _, tier := range tiers {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		resp, err := tier.Protocol.CreateChatCompletion(ctx, &ChatCompletionRequest{
			Model:       tier.Model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		text := resp.Text()
		if text == "" {
			errs = append(errs, fmt.Errorf("%s: empty completion", tier.Name))
			continue
		}
		return text, tier.Name, nil
	}
	return "", "", fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
