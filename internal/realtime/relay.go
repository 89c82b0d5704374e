package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/finsightx/alert-engine/internal/dispatcher/inapp"
)

// Relay forwards in-app alerts from Redis pub/sub into a Hub.
type Relay struct {
	client *redis.Client
	hub    *Hub
}

// NewRelay creates a relay.
func NewRelay(client *redis.Client, hub *Hub) *Relay {
	return &Relay{client: client, hub: hub}
}

// Run subscribes to every organization feed and blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, inapp.ChannelPattern)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", inapp.ChannelPattern, err)
	}
	slog.Info("In-app relay subscribed", "pattern", inapp.ChannelPattern)

	r.forward(ctx, pubsub.Channel())
	return nil
}

func (r *Relay) forward(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("In-app relay stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				slog.Warn("In-app relay subscription closed")
				return
			}
			org, ok := inapp.OrganizationFromChannel(msg.Channel)
			if !ok {
				slog.Warn("Ignoring message on unexpected channel", "channel", msg.Channel)
				continue
			}
			r.hub.Broadcast(org, []byte(msg.Payload))
		}
	}
}
