package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/staypro/agenthub/pkg/models"
)

// Request carries everything a handler needs for one invocation. ActionID
// identifies the ledger row owned by this dispatch; handlers must never
// write that row themselves.
type Request struct {
	TenantID string
	Intent   string
	ActionID string
	Context  map[string]any
}

// String returns a context value by key, or "" when absent or non-string.
func (r *Request) String(key string) string {
	s, _ := r.Context[key].(string)
	return s
}

// Float returns a numeric context value by key.
func (r *Request) Float(key string) (float64, bool) {
	switch v := r.Context[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Handler processes one intent. Implementations return a Result carrying a
// "status" key; returning an error (or panicking) is equivalent to an error
// result.
type Handler interface {
	Intent() string
	Handle(ctx context.Context, req *Request) (models.Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, req *Request) (models.Result, error)
}

func (h HandlerFunc) Intent() string { return h.Name }

func (h HandlerFunc) Handle(ctx context.Context, req *Request) (models.Result, error) {
	return h.Fn(ctx, req)
}

// Registry maps intents to handlers. The mapping is fixed at startup; there
// is no runtime registration surface, so lookups need no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds the intent table. Duplicate or invalid intents are
// configuration bugs and fail construction.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	table := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		intent := h.Intent()
		if !models.IsValidIntent(intent) {
			return nil, fmt.Errorf("handler registered for invalid intent %q", intent)
		}
		if _, dup := table[intent]; dup {
			return nil, fmt.Errorf("duplicate handler for intent %q", intent)
		}
		table[intent] = h
	}
	return &Registry{handlers: table}, nil
}

// Get returns the handler for an intent.
func (r *Registry) Get(intent string) (Handler, error) {
	if !models.IsValidIntent(intent) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}
	h, ok := r.handlers[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIntent, intent)
	}
	return h, nil
}

// Intents returns the registered intents sorted for stable output.
func (r *Registry) Intents() []string {
	intents := make([]string, 0, len(r.handlers))
	for intent := range r.handlers {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents
}
