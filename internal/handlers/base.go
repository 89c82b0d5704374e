// Package handlers provides HTTP handlers for the alert API.
package handlers

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	db            Repository
	producer      RulePublisher
	metricsReader ServiceMetricsReader
	metrics       MetricsRecorder
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithServiceMetrics enables GET /services/metrics.
func WithServiceMetrics(r ServiceMetricsReader) Option {
	return func(h *Handlers) {
		h.metricsReader = r
	}
}

// NewHandlers creates a new handlers instance. A nil producer disables
// rule.changed publishing.
func NewHandlers(db Repository, prod RulePublisher, opts ...Option) *Handlers {
	h := &Handlers{
		db:       db,
		producer: prod,
		metrics:  NoOpMetrics{}, // never nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
