package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a rule, alert, endpoint or scope record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionMismatch is returned when an optimistic-lock precondition fails.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrAlreadyExists is returned on unique-key violations.
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError reports a malformed rule or request. Never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// MetricUnavailableError means the metric source could not answer this cycle.
// The rule is skipped and retried on the next cycle.
type MetricUnavailableError struct {
	EntityID   string
	MetricType string
	Err        error
}

func (e *MetricUnavailableError) Error() string {
	return fmt.Sprintf("metric %s unavailable for entity %s: %v", e.MetricType, e.EntityID, e.Err)
}

func (e *MetricUnavailableError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned for an illegal alert status change.
type InvalidTransitionError struct {
	AlertID string
	From    AlertStatus
	To      AlertStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for alert %s: %s -> %s", e.AlertID, e.From, e.To)
}

// DispatchChannelError is a per-channel delivery failure.
type DispatchChannelError struct {
	Channel Channel
	Err     error
}

func (e *DispatchChannelError) Error() string {
	return fmt.Sprintf("dispatch via %s failed: %v", e.Channel, e.Err)
}

func (e *DispatchChannelError) Unwrap() error { return e.Err }

// ConcurrencyConflictError means another evaluation already recorded a
// trigger for this rule and entity inside the gating window.
type ConcurrencyConflictError struct {
	RuleID   string
	EntityID string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("trigger already recorded for rule %s entity %s", e.RuleID, e.EntityID)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is or wraps a ConcurrencyConflictError.
func IsConflict(err error) bool {
	var c *ConcurrencyConflictError
	return errors.As(err, &c)
}
