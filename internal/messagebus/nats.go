package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsBus implements MessageBus using NATS with JetStream.
type NatsBus struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string

	mu            sync.Mutex
	subscriptions []*nats.Subscription
}

// Config holds NATS configuration
type Config struct {
	URL        string        // NATS server URL (e.g., "nats://nats:4222")
	StreamName string        // JetStream stream name (default: "AGENTHUB")
	Timeout    time.Duration // Connection timeout
}

// NewNatsBus connects to NATS and ensures the hub stream exists.
func NewNatsBus(cfg Config) (*NatsBus, error) {
	if cfg.URL == "" {
		cfg.URL = "nats://localhost:4222"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "AGENTHUB"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &NatsBus{
		conn:       nc,
		js:         js,
		streamName: cfg.StreamName,
	}

	if err := bus.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	log.Printf("Connected to NATS at %s with JetStream stream %s", cfg.URL, cfg.StreamName)
	return bus, nil
}

// ensureStream creates or updates the JetStream stream. LimitsPolicy lets
// multiple consumers (dashboards, the websocket feed) read the same subjects.
func (b *NatsBus) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      b.streamName,
		Subjects:  []string{"hub.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024, // 256MB
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := b.js.StreamInfo(b.streamName); err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Printf("Created JetStream stream: %s", b.streamName)
		return nil
	}

	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// PublishAction publishes an action lifecycle message to
// hub.actions.{tenant}.{status}.
func (b *NatsBus) PublishAction(ctx context.Context, msg *ActionMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	subject := fmt.Sprintf("hub.actions.%s.%s", msg.TenantID, msg.Status)
	return b.publish(subject, msg)
}

// PublishEvent publishes a deferred-handoff message to
// hub.events.{tenant}.
func (b *NatsBus) PublishEvent(ctx context.Context, msg *EventMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	subject := fmt.Sprintf("hub.events.%s", msg.TenantID)
	return b.publish(subject, msg)
}

func (b *NatsBus) publish(subject string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := b.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}
	return nil
}

// SubscribeActions delivers a tenant's action lifecycle messages to handler.
// tenantID may be "*" to watch all tenants.
func (b *NatsBus) SubscribeActions(tenantID string, handler func(*ActionMessage)) error {
	if tenantID == "" {
		tenantID = "*"
	}
	subject := fmt.Sprintf("hub.actions.%s.*", tenantID)

	sub, err := b.js.Subscribe(subject, func(msg *nats.Msg) {
		var action ActionMessage
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			log.Printf("Failed to unmarshal action message: %v", err)
			msg.Nak()
			return
		}
		handler(&action)
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()
	return nil
}

// Close drains subscriptions and closes the connection.
func (b *NatsBus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subscriptions {
		_ = sub.Unsubscribe()
	}
	b.subscriptions = nil
	b.mu.Unlock()

	b.conn.Close()
	return nil
}
