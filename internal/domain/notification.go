package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification is the channel-independent content of a triggered alert,
// handed to every notification sender.
type Notification struct {
	AlertID        string
	RuleID         string // empty for manual and system alerts
	RuleName       string
	OrganizationID string
	EntityID       string
	AlertType      string
	Severity       Severity
	Title          string
	Description    string
	MetricValue    decimal.NullDecimal
	ThresholdValue decimal.NullDecimal
	TriggeredAt    time.Time
}
