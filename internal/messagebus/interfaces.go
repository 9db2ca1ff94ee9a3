package messagebus

import (
	"context"
	"time"

	"github.com/staypro/agenthub/pkg/models"
)

// ActionMessage is the lifecycle notification published for every ledger
// transition.
type ActionMessage struct {
	ActionID  string              `json:"action_id"`
	TenantID  string              `json:"tenant_id"`
	Intent    string              `json:"intent"`
	Status    models.ActionStatus `json:"status"`
	Error     string              `json:"error,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// EventMessage is published when a deferred handoff is created or drained.
type EventMessage struct {
	EventID   string    `json:"event_id"`
	TenantID  string    `json:"tenant_id"`
	Trigger   string    `json:"trigger"`
	NextAgent string    `json:"next_agent"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageBus publishes hub lifecycle notifications. Implementations must be
// safe for concurrent use. Publishing is best effort from the dispatcher's
// point of view: a bus outage never fails a dispatch.
type MessageBus interface {
	PublishAction(ctx context.Context, msg *ActionMessage) error
	PublishEvent(ctx context.Context, msg *EventMessage) error
	SubscribeActions(tenantID string, handler func(*ActionMessage)) error
	Close() error
}

// NoopBus discards every message. Used when NATS is not configured.
type NoopBus struct{}

func (NoopBus) PublishAction(ctx context.Context, msg *ActionMessage) error { return nil }
func (NoopBus) PublishEvent(ctx context.Context, msg *EventMessage) error  { return nil }
func (NoopBus) SubscribeActions(tenantID string, handler func(*ActionMessage)) error {
	return nil
}
func (NoopBus) Close() error { return nil }
