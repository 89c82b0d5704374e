// Package strategy defines the interface for notification sending strategies.
package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/finsightx/alert-engine/internal/domain"
)

// NotificationSender is the interface that all notification sending strategies must implement.
type NotificationSender interface {
	// Send delivers a notification to one recipient. The recipient format depends on the channel:
	//   - email: email address(es) as comma-separated string
	//   - sms: E.164 phone number
	//   - push: device token
	//   - in_app: organization ID
	//   - slack, webhook: URL
	Send(ctx context.Context, recipient string, notification *domain.Notification) error

	// Type returns the channel this sender handles.
	Type() domain.Channel
}

// Registry manages notification sender strategies.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.Channel]NotificationSender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[domain.Channel]NotificationSender),
	}
}

// Register registers a sender strategy, replacing any sender for the same channel.
func (r *Registry) Register(sender NotificationSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by channel.
func (r *Registry) Get(channel domain.Channel) (NotificationSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[channel]
	return sender, ok
}

// List returns all registered channels, sorted.
func (r *Registry) List() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.Channel, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
