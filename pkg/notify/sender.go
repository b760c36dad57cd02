package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one delivery attempt
const DefaultTimeout = 5 * time.Second

// Sender delivers a human-readable alert
type Sender interface {
	Send(ctx context.Context, message string) error
}

// WebhookSender posts {"message": "..."} to a chat bridge
type WebhookSender struct {
	URL    string
	Client *http.Client
}

// NewWebhookSender creates a webhook sender with the given request timeout
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebhookSender{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Message string `json:"message"`
}

// Send posts message and treats any non-2xx status as failure
func (s *WebhookSender) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Message: message})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// LogSender writes alerts to the structured log. It is used when no webhook
// is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender that logs at warn level
func NewLogSender() *LogSender {
	return &LogSender{logger: log.WithComponent("notify")}
}

func (s *LogSender) Send(ctx context.Context, message string) error {
	s.logger.Warn().Str("alert", message).Msg("Notification")
	return nil
}
