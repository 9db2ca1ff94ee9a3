package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Mailer delivers outbound guest messages. Handlers treat delivery failures
// as soft: the message content is still persisted as a document.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoopMailer drops messages. Used when no delivery webhook is configured.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, to, subject, body string) error { return nil }

// WebhookMailer posts messages to an HTTP delivery endpoint (transactional
// mail relay, notification bridge).
type WebhookMailer struct {
	endpoint string
	client   *http.Client
}

// NewWebhookMailer creates a mailer posting to the given endpoint.
func NewWebhookMailer(endpoint string) *WebhookMailer {
	return &WebhookMailer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *WebhookMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
