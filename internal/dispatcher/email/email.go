// Package email provides email notification sending through a provider
// registry with primary and fallback providers.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finsightx/alert-engine/internal/dispatcher/email/provider"
	"github.com/finsightx/alert-engine/internal/dispatcher/payload"
	"github.com/finsightx/alert-engine/internal/dispatcher/validation"
	"github.com/finsightx/alert-engine/internal/domain"
)

// mailer is satisfied by *provider.Registry.
type mailer interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Sender implements email notification sending.
type Sender struct {
	mailer mailer
	from   string
}

// NewSender creates a new email sender.
func NewSender(m mailer, from string) *Sender {
	return &Sender{mailer: m, from: from}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelEmail
}

// Send sends an email notification.
// The recipient may be a comma-separated list of email addresses.
func (s *Sender) Send(ctx context.Context, recipient string, notification *domain.Notification) error {
	if recipient == "" {
		return &domain.ValidationError{Field: "recipient", Message: "email recipient is required"}
	}

	recipients := parseRecipients(recipient)
	if len(recipients) == 0 {
		return &domain.ValidationError{Field: "recipient", Message: "no valid email recipients provided"}
	}
	for _, r := range recipients {
		if !validation.IsValidEmail(r) {
			return &domain.ValidationError{Field: "recipient", Message: fmt.Sprintf("invalid email address format: %q", r)}
		}
	}

	emailPayload := payload.BuildEmailPayload(notification)
	req := &provider.EmailRequest{
		From:    s.from,
		To:      recipients,
		Subject: emailPayload.Subject,
		Body:    emailPayload.Body,
	}
	if err := s.mailer.Send(ctx, req); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Successfully sent email notification",
		"to", strings.Join(recipients, ", "),
		"alert_id", notification.AlertID,
		"organization_id", notification.OrganizationID,
	)
	return nil
}

// parseRecipients parses a comma-separated list of email addresses.
func parseRecipients(value string) []string {
	parts := strings.Split(value, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}
