// Package inapp publishes alerts to an organization's real-time feed over
// Redis pub/sub. The API relays the feed to WebSocket clients.
package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/finsightx/alert-engine/internal/dispatcher/payload"
	"github.com/finsightx/alert-engine/internal/domain"
)

const channelPrefix = "alerts:inapp:"

// ChannelPattern matches every organization feed.
const ChannelPattern = channelPrefix + "*"

// ChannelName returns the pub/sub channel for an organization.
func ChannelName(organizationID string) string {
	return channelPrefix + organizationID
}

// OrganizationFromChannel extracts the organization id from a feed channel.
func OrganizationFromChannel(channel string) (string, bool) {
	org, ok := strings.CutPrefix(channel, channelPrefix)
	return org, ok && org != ""
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Sender implements in-app notification delivery.
type Sender struct {
	client publisher
}

// NewSender creates a new in-app sender on a Redis client.
func NewSender(client publisher) *Sender {
	return &Sender{client: client}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() domain.Channel {
	return domain.ChannelInApp
}

// Send publishes the alert to the organization's feed. The recipient is the
// organization id.
func (s *Sender) Send(ctx context.Context, organizationID string, notification *domain.Notification) error {
	if organizationID == "" {
		return fmt.Errorf("in-app recipient organization is required")
	}

	data, err := json.Marshal(payload.BuildInAppMessage(notification))
	if err != nil {
		return fmt.Errorf("failed to marshal in-app message: %w", err)
	}

	subscribers, err := s.client.Publish(ctx, ChannelName(organizationID), data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish in-app message: %w", err)
	}

	// Zero subscribers is fine: clients that are offline poll the alert list.
	slog.Debug("Published in-app notification",
		"organization_id", organizationID,
		"alert_id", notification.AlertID,
		"subscribers", subscribers,
	)
	return nil
}
