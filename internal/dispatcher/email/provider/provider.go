// Package provider defines the email provider interface and registry.
// It uses the Strategy pattern to support multiple email backends (SMTP, SES, Resend).
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// EmailRequest represents an email to be sent.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Body    string // Plain text body
	HTML    string // HTML body (optional)
}

// Provider is the interface that all email providers must implement.
type Provider interface {
	// Name returns the provider name (e.g., "smtp", "ses", "resend")
	Name() string

	// Send sends an email using this provider.
	Send(ctx context.Context, req *EmailRequest) error

	// IsConfigured returns true if the provider is properly configured.
	IsConfigured() bool
}

// Registry manages email providers with fallback support.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string   // Primary provider name
	fallback  []string // Fallback provider names in order
}

// NewRegistry creates a new email provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		fallback:  make([]string, 0),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
	slog.Info("Registered email provider", "name", provider.Name(), "configured", provider.IsConfigured())
}

// SetPrimary sets the primary provider by name.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.primary = name
	return nil
}

// SetFallback sets the fallback providers in order.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.fallback = names
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ErrNoProvider is returned when no registered provider is configured.
var ErrNoProvider = errors.New("no configured email provider available")

// candidates returns the configured providers in the order Send tries them:
// the primary, the fallbacks, then any other configured provider by name.
func (r *Registry) candidates() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := make([]string, 0, len(r.providers))
	order = append(order, r.primary)
	order = append(order, r.fallback...)
	rest := make([]string, 0, len(r.providers))
	for name := range r.providers {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	order = append(order, rest...)

	seen := make(map[string]bool, len(order))
	out := make([]Provider, 0, len(r.providers))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// GetPrimary returns the provider Send tries first.
func (r *Registry) GetPrimary() (Provider, error) {
	candidates := r.candidates()
	if len(candidates) == 0 {
		return nil, ErrNoProvider
	}
	if p := candidates[0]; p.Name() != r.primaryName() {
		slog.Warn("Primary email provider not configured, using fallback",
			"primary", r.primaryName(),
			"fallback", p.Name(),
		)
	}
	return candidates[0], nil
}

func (r *Registry) primaryName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Send delivers req through the first provider that accepts it. When every
// provider fails the joined errors are returned, primary first.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	candidates := r.candidates()
	if len(candidates) == 0 {
		return ErrNoProvider
	}

	var errs []error
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := p.Send(ctx, req)
		if err == nil {
			if i > 0 {
				slog.Info("Email delivered by fallback provider", "provider", p.Name(), "failed", i)
			}
			return nil
		}
		slog.Warn("Email provider failed",
			"provider", p.Name(),
			"remaining", len(candidates)-i-1,
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return errors.Join(errs...)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
