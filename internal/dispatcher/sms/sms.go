// Package sms sends text-message notifications through a Twilio-style
// Messages API (form-encoded POST with basic auth).
package sms

import (
	"context"
	"fmt"
	"io"
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

// Config holds SMS gateway settings.
type Config struct {
	BaseURL    string // e.g. https://api.twilio.com/2010-04-01
	AccountSID string
	AuthToken  string
	From       string // E.164 sender number
}

// Sender implements SMS notification sending.
type Sender struct {
	cfg        Config
	httpClient *http.Client
}

// NewSender creates a new SMS sender.
func NewSender(cfg Config) *Sender {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Sender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelSMS
}

// IsConfigured reports whether gateway credentials are present.
func (s *Sender) IsConfigured() bool {
	return s.cfg.BaseURL != "" && s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.From != ""
}

func (s *Sender) messagesURL() string {
	return fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.BaseURL, url.PathEscape(s.cfg.AccountSID))
}

// Send sends the alert as a text message to an E.164 phone number.
func (s *Sender) Send(ctx context.Context, phone string, notification *domain.Notification) error {
	if phone == "" {
		return fmt.Errorf("sms recipient is required")
	}
	if !validation.IsValidPhone(phone) {
		return fmt.Errorf("invalid phone number %q (must be E.164, e.g. +15551234567)", phone)
	}
	if !s.IsConfigured() {
		return fmt.Errorf("sms gateway not configured")
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.cfg.From)
	form.Set("Body", payload.BuildSMSBody(notification))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.messagesURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("SMS gateway returned error status",
			"status_code", resp.StatusCode,
			"alert_id", notification.AlertID,
			"body", string(body),
		)
		return &retry.StatusError{Service: "sms gateway", Code: resp.StatusCode}
	}

	slog.Info("Successfully sent SMS notification",
		"to", maskPhone(phone),
		"alert_id", notification.AlertID,
	)
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
