package dispatcher

import (
	"github.com/redis/go-redis/v9"

	"github.com/finsightx/alert-engine/internal/dispatcher/email"
	"github.com/finsightx/alert-engine/internal/dispatcher/email/provider"
	"github.com/finsightx/alert-engine/internal/dispatcher/inapp"
	"github.com/finsightx/alert-engine/internal/dispatcher/push"
	"github.com/finsightx/alert-engine/internal/dispatcher/slack"
	"github.com/finsightx/alert-engine/internal/dispatcher/sms"
	"github.com/finsightx/alert-engine/internal/dispatcher/strategy"
	"github.com/finsightx/alert-engine/internal/dispatcher/webhook"
)

// Channels carries what the built-in senders need.
type Channels struct {
	EmailProviders *provider.Registry
	EmailFrom      string
	SMS            sms.Config
	Push           push.Config
	Redis          *redis.Client // nil disables in-app delivery
}

// NewDefaultRegistry registers every built-in channel sender.
func NewDefaultRegistry(c Channels) *strategy.Registry {
	registry := strategy.NewRegistry()

	if c.EmailProviders != nil {
		registry.Register(email.NewSender(c.EmailProviders, c.EmailFrom))
	}
	registry.Register(sms.NewSender(c.SMS))
	registry.Register(push.NewSender(c.Push))
	if c.Redis != nil {
		registry.Register(inapp.NewSender(c.Redis))
	}
	registry.Register(slack.NewSender())
	registry.Register(webhook.NewSender())

	return registry
}
