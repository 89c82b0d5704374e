package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/finsightx/alert-engine/internal/dispatcher"
	"github.com/finsightx/alert-engine/internal/dispatcher/email/provider"
	"github.com/finsightx/alert-engine/internal/dispatcher/push"
	"github.com/finsightx/alert-engine/internal/dispatcher/sms"
	"github.com/finsightx/alert-engine/pkg/shared"
)

// emailProviderOrder is the fallback order after the primary.
var emailProviderOrder = []string{"smtp", "ses", "resend"}

// newEmailProviders registers every email provider from the environment and
// makes primary the first choice. Unconfigured providers stay registered and
// are skipped at send time.
func newEmailProviders(ctx context.Context, primary string) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	registry.Register(provider.NewSMTPProvider(provider.SMTPConfig{
		Host:     shared.GetEnvOrDefault("SMTP_HOST", "localhost"),
		Port:     shared.GetEnvOrDefault("SMTP_PORT", "1025"),
		User:     shared.GetEnvOrDefault("SMTP_USER", ""),
		Password: shared.GetEnvOrDefault("SMTP_PASSWORD", ""),
	}))
	registry.Register(provider.NewSESProvider(ctx, shared.GetEnvOrDefault("AWS_REGION", "us-east-1")))
	registry.Register(provider.NewResendProvider(shared.GetEnvOrDefault("RESEND_API_KEY", "")))

	if err := registry.SetPrimary(primary); err != nil {
		return nil, fmt.Errorf("failed to set primary email provider: %w", err)
	}

	fallback := make([]string, 0, len(emailProviderOrder)-1)
	for _, name := range emailProviderOrder {
		if name != primary {
			fallback = append(fallback, name)
		}
	}
	if err := registry.SetFallback(fallback...); err != nil {
		return nil, fmt.Errorf("failed to set fallback email providers: %w", err)
	}
	return registry, nil
}

// channelsFromEnv assembles sender settings. SMTP_FROM overrides emailFrom.
func channelsFromEnv(emails *provider.Registry, emailFrom string, redisClient *redis.Client) dispatcher.Channels {
	return dispatcher.Channels{
		EmailProviders: emails,
		EmailFrom:      shared.GetEnvOrDefault("SMTP_FROM", emailFrom),
		SMS: sms.Config{
			BaseURL:    shared.GetEnvOrDefault("SMS_BASE_URL", "https://api.twilio.com/2010-04-01"),
			AccountSID: shared.GetEnvOrDefault("SMS_ACCOUNT_SID", ""),
			AuthToken:  shared.GetEnvOrDefault("SMS_AUTH_TOKEN", ""),
			From:       shared.GetEnvOrDefault("SMS_FROM", ""),
		},
		Push: push.Config{
			GatewayURL: shared.GetEnvOrDefault("PUSH_GATEWAY_URL", ""),
			APIKey:     shared.GetEnvOrDefault("PUSH_API_KEY", ""),
		},
		Redis: redisClient,
	}
}
