// Package webhook provides generic webhook notification sending via HTTP POST.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finsightx/alert-engine/internal/dispatcher/payload"
	"github.com/finsightx/alert-engine/internal/dispatcher/retry"
	"github.com/finsightx/alert-engine/internal/dispatcher/validation"
	"github.com/finsightx/alert-engine/internal/domain"
)

// Sender implements webhook notification sending via HTTP POST.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new webhook sender.
func NewSender() *Sender {
	return &Sender{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelWebhook
}

// Reserved documentation and test hosts. Rules seeded with these are
// delivered as no-ops.
var dummyWebhookHosts = []string{
	"example.com",
	"example.org",
	"example.net",
	"test.com",
	"localhost",
	"invalid",
}

func isDummyWebhookURL(endpointValue string) bool {
	parsed, err := url.Parse(endpointValue)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, dummy := range dummyWebhookHosts {
		if host == dummy || strings.HasSuffix(host, "."+dummy) {
			return true
		}
	}
	return false
}

// Send posts the alert as JSON to the webhook URL.
func (s *Sender) Send(ctx context.Context, webhookURL string, notification *domain.Notification) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL recipient is required")
	}
	if !validation.IsValidURL(webhookURL) {
		return fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", webhookURL)
	}

	if isDummyWebhookURL(webhookURL) {
		slog.Info("Skipping dummy webhook endpoint",
			"webhook_url", webhookURL,
			"alert_id", notification.AlertID,
		)
		return nil
	}

	jsonData, err := json.Marshal(payload.BuildWebhookPayload(notification))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-ID", notification.AlertID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send webhook notification",
			"error", err,
			"webhook_url", webhookURL,
			"alert_id", notification.AlertID,
		)
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Webhook returned error status",
			"status_code", resp.StatusCode,
			"webhook_url", webhookURL,
			"alert_id", notification.AlertID,
		)
		return &retry.StatusError{Service: "webhook", Code: resp.StatusCode}
	}

	slog.Info("Successfully sent webhook notification",
		"webhook_url", webhookURL,
		"alert_id", notification.AlertID,
		"organization_id", notification.OrganizationID,
	)
	return nil
}
