// Package slack provides Slack notification sending via Incoming Webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/finsightx/alert-engine/internal/dispatcher/payload"
	"github.com/finsightx/alert-engine/internal/dispatcher/retry"
	"github.com/finsightx/alert-engine/internal/dispatcher/validation"
	"github.com/finsightx/alert-engine/internal/domain"
)

// maskURL masks the secret part of a webhook URL for logging.
func maskURL(url string) string {
	if len(url) > 50 {
		return url[:30] + "..." + url[len(url)-10:]
	}
	return url
}

// Sender implements Slack notification sending via Incoming Webhooks.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new Slack sender.
func NewSender() *Sender {
	return &Sender{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelSlack
}

// Send posts the notification to a Slack incoming webhook URL.
func (s *Sender) Send(ctx context.Context, webhookURL string, notification *domain.Notification) error {
	if webhookURL == "" {
		return fmt.Errorf("slack webhook URL recipient is required")
	}
	if !validation.IsValidURL(webhookURL) {
		return fmt.Errorf("invalid Slack webhook URL: %q (must be an HTTP/HTTPS URL, not a channel name)", webhookURL)
	}

	jsonData, err := json.Marshal(payload.BuildSlackPayload(notification))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send Slack notification",
			"error", err,
			"webhook_url", maskURL(webhookURL),
			"alert_id", notification.AlertID,
		)
		return fmt.Errorf("failed to send Slack notification to %s: %w", maskURL(webhookURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Slack webhook returned error status",
			"status_code", resp.StatusCode,
			"alert_id", notification.AlertID,
		)
		return &retry.StatusError{Service: "slack webhook", Code: resp.StatusCode}
	}

	slog.Info("Successfully sent Slack notification",
		"alert_id", notification.AlertID,
		"organization_id", notification.OrganizationID,
	)
	return nil
}
