// Package push sends mobile push notifications through an HTTP push gateway.
package push

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

// Config holds push gateway settings.
type Config struct {
	GatewayURL string
	APIKey     string
}

// Sender implements push notification sending.
type Sender struct {
	cfg        Config
	httpClient *http.Client
}

// NewSender creates a new push sender.
func NewSender(cfg Config) *Sender {
	return &Sender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelPush
}

// Send delivers the alert to one device token.
func (s *Sender) Send(ctx context.Context, token string, notification *domain.Notification) error {
	if token == "" {
		return fmt.Errorf("push device token recipient is required")
	}
	if !validation.IsValidURL(s.cfg.GatewayURL) {
		return fmt.Errorf("push gateway not configured")
	}

	jsonData, err := json.Marshal(payload.BuildPushPayload(token, notification))
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Push gateway returned error status",
			"status_code", resp.StatusCode,
			"alert_id", notification.AlertID,
		)
		return &retry.StatusError{Service: "push gateway", Code: resp.StatusCode}
	}

	slog.Info("Successfully sent push notification",
		"alert_id", notification.AlertID,
		"severity", notification.Severity,
	)
	return nil
}
