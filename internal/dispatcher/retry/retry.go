// Package retry provides retry logic with exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/finsightx/alert-engine/internal/domain"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultConfig returns the retry policy for a single notification channel:
// one retry, so a slow channel cannot hold the alert hand-off for long.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     1,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
	}
}

// StatusError is a non-2xx answer from an HTTP gateway.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// Retryable reports whether the gateway may accept the same request later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable checks if an error is retryable (transient).
// Network errors, rate limits, and temporary service unavailability are retryable.
// Validation errors, cancellation and permanent failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var validationErr *domain.ValidationError
	var permanent *permanentError
	if errors.As(err, &validationErr) || errors.As(err, &permanent) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())

	// Non-retryable errors (permanent failures)
	nonRetryable := []string{
		"not verified",          // SES sandbox - recipient not verified
		"validation error",      // Invalid input
		"invalid",               // Invalid request
		"malformed",             // Bad request format
		"recipient is required", // Missing required field
		"no recipients",         // Nothing to deliver to
	}

	for _, s := range nonRetryable {
		if strings.Contains(errStr, s) {
			return false
		}
	}

	// Retryable errors (transient failures)
	retryable := []string{
		"timeout",             // Network timeout
		"connection refused",  // Service temporarily unavailable
		"connection reset",    // Network hiccup
		"temporary",           // Explicit temporary error
		"rate limit",          // Rate limiting
		"throttl",             // SES throttling
		"too many requests",   // Resend rate limiting
		"service unavailable", // SMTP 421
		"try again",           // Server suggests retry
	}

	for _, s := range retryable {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	// Default: don't retry unknown errors
	return false
}

// Budget is the retry allowance of one delivery attempt. Every send that
// shares a Budget draws from the same MaxRetries pool. Not safe for
// concurrent use.
type Budget struct {
	cfg  Config
	used int
}

// NewBudget creates a budget holding cfg.MaxRetries retries.
func NewBudget(cfg Config) *Budget {
	return &Budget{cfg: cfg}
}

// Remaining returns the number of retries left.
func (b *Budget) Remaining() int {
	return b.cfg.MaxRetries - b.used
}

// Retry runs fn again after a backoff when err is retryable and the budget is
// not spent. It reports whether fn ran, and the error to keep for the send:
// fn's result when it ran, otherwise err (or ctx.Err() if the wait was cut short).
func (b *Budget) Retry(ctx context.Context, operation string, err error, fn func() error) (bool, error) {
	if !IsRetryable(err) {
		slog.Debug("Error is not retryable, failing immediately",
			"operation", operation,
			"error", err,
		)
		return false, err
	}
	if b.Remaining() <= 0 {
		slog.Warn("Max retries exceeded",
			"operation", operation,
			"retries", b.used,
			"error", err,
		)
		return false, err
	}

	backoff := calculateBackoff(b.cfg, b.used)
	b.used++

	slog.Warn("Operation failed, retrying",
		"operation", operation,
		"retry", b.used,
		"max_retries", b.cfg.MaxRetries,
		"backoff", backoff,
		"error", err,
	)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(backoff):
	}

	if err := fn(); err != nil {
		return true, err
	}
	slog.Info("Operation succeeded after retry", "operation", operation, "retry", b.used)
	return true, nil
}

// calculateBackoff calculates the backoff duration with jitter.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	// Exponential backoff: initial * factor^attempt
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))

	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	// Add jitter (±25%)
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}
