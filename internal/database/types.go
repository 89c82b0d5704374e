package database

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/domain"
)

// Organization represents a tenant.
type Organization struct {
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Company represents a monitored entity inside an organization.
type Company struct {
	CompanyID      string    `json:"company_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Rule represents an alert rule record in the database.
type Rule struct {
	RuleID               string          `json:"rule_id"`
	OrganizationID       string          `json:"organization_id"`
	CompanyID            *string         `json:"company_id"`
	RuleName             string          `json:"rule_name"`
	MetricType           string          `json:"metric_type"`
	ThresholdValue       decimal.Decimal `json:"threshold_value"`
	ComparisonOperator   string          `json:"comparison_operator"`
	Enabled              bool            `json:"enabled"`
	Frequency            string          `json:"frequency"`
	NotificationChannels []string        `json:"notification_channels"`
	LastTriggeredAt      *time.Time      `json:"last_triggered_at"`
	Version              int             `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Spec returns the editable part of the rule.
func (r *Rule) Spec() domain.RuleSpec {
	channels := make([]string, len(r.NotificationChannels))
	copy(channels, r.NotificationChannels)
	return domain.RuleSpec{
		OrganizationID:       r.OrganizationID,
		CompanyID:            r.CompanyID,
		RuleName:             r.RuleName,
		MetricType:           r.MetricType,
		ThresholdValue:       r.ThresholdValue,
		ComparisonOperator:   r.ComparisonOperator,
		Frequency:            r.Frequency,
		NotificationChannels: channels,
	}
}

// Endpoint is a recipient address for one channel of a rule.
type Endpoint struct {
	EndpointID string    `json:"endpoint_id"`
	RuleID     string    `json:"rule_id"`
	Type       string    `json:"type"`  // channel name
	Value      string    `json:"value"` // email address, phone number, device token, URL
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChannelDelivery records the outcome of delivering an alert over one channel.
type ChannelDelivery struct {
	Delivered bool   `json:"delivered"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// Alert represents an alert record in the database.
type Alert struct {
	AlertID        string                     `json:"alert_id"`
	RuleID         *string                    `json:"rule_id"`
	OrganizationID string                     `json:"organization_id"`
	EntityID       string                     `json:"entity_id"`
	AlertType      string                     `json:"alert_type"`
	Severity       string                     `json:"severity"`
	Title          string                     `json:"title"`
	Description    string                     `json:"description"`
	MetricValue    decimal.NullDecimal        `json:"metric_value"`
	ThresholdValue decimal.NullDecimal        `json:"threshold_value"`
	Status         string                     `json:"status"`
	TriggeredAt    time.Time                  `json:"triggered_at"`
	AcknowledgedAt *time.Time                 `json:"acknowledged_at"`
	ResolvedAt     *time.Time                 `json:"resolved_at"`
	DeliveryStatus map[string]ChannelDelivery `json:"delivery_status,omitempty"`
}

// RuleListResult contains paginated rule results.
type RuleListResult struct {
	Rules  []*Rule `json:"rules"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// AlertListResult contains paginated alert results.
type AlertListResult struct {
	Alerts []*Alert `json:"alerts"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// NewRuleInput is the payload for CreateRule.
type NewRuleInput struct {
	domain.RuleSpec
	Enabled bool
}

// RuleFilter narrows ListRules. CompanyID selects the rules that apply to
// that company: its own rules plus the organization-wide ones.
type RuleFilter struct {
	OrganizationID string
	CompanyID      *string
	EnabledOnly    bool
}

// RulePatch is a partial update. Nil fields are left unchanged.
// The company scope of a rule is fixed at creation.
type RulePatch struct {
	RuleName             *string
	MetricType           *string
	ThresholdValue       *decimal.Decimal
	ComparisonOperator   *string
	Frequency            *string
	NotificationChannels []string
}

// Apply merges the patch onto spec.
func (p RulePatch) Apply(spec domain.RuleSpec) domain.RuleSpec {
	if p.RuleName != nil {
		spec.RuleName = *p.RuleName
	}
	if p.MetricType != nil {
		spec.MetricType = *p.MetricType
	}
	if p.ThresholdValue != nil {
		spec.ThresholdValue = *p.ThresholdValue
	}
	if p.ComparisonOperator != nil {
		spec.ComparisonOperator = *p.ComparisonOperator
	}
	if p.Frequency != nil {
		spec.Frequency = *p.Frequency
	}
	if p.NotificationChannels != nil {
		spec.NotificationChannels = p.NotificationChannels
	}
	return spec
}

// AlertFilter narrows ListAlerts. Empty fields match everything.
type AlertFilter struct {
	OrganizationID string
	EntityID       string
	Severity       string
	Status         string
}

// NewAlertInput is the payload for CreateAlert.
type NewAlertInput struct {
	RuleID         *string
	OrganizationID string
	EntityID       string
	AlertType      string
	Severity       domain.Severity
	Title          string
	Description    string
	MetricValue    decimal.NullDecimal
	ThresholdValue decimal.NullDecimal
	TriggeredAt    time.Time
}

// Validate checks the required fields of a new alert.
func (in NewAlertInput) Validate() error {
	switch {
	case in.OrganizationID == "":
		return &domain.ValidationError{Field: "organization_id", Message: "is required"}
	case in.EntityID == "":
		return &domain.ValidationError{Field: "entity_id", Message: "is required"}
	case in.AlertType == "":
		return &domain.ValidationError{Field: "alert_type", Message: "is required"}
	case !in.Severity.Valid():
		return &domain.ValidationError{Field: "severity", Message: "must be one of low, medium, high, critical"}
	case in.Title == "":
		return &domain.ValidationError{Field: "title", Message: "is required"}
	}
	return nil
}

// TriggerInput carries everything TriggerRule commits in one transaction.
type TriggerInput struct {
	RuleID      string
	EntityID    string
	TriggeredAt time.Time
	// MinInterval is the gating window; the trigger clock only advances when
	// the previous trigger is at least this old.
	MinInterval time.Duration
	Alert       NewAlertInput
}

// EvaluationTarget is one (rule, entity) pair due for evaluation.
type EvaluationTarget struct {
	Rule            *Rule
	EntityID        string
	LastTriggeredAt *time.Time
}

// AlertStats holds aggregated alert and rule counts for the dashboard.
type AlertStats struct {
	// Alert metrics
	TotalAlerts      int64            `json:"total_alerts"`
	AlertsByStatus   map[string]int64 `json:"alerts_by_status"`
	AlertsBySeverity map[string]int64 `json:"alerts_by_severity"`
	AlertsLast24h    int64            `json:"alerts_last_24h"`

	// Rule metrics
	TotalRules    int64 `json:"total_rules"`
	EnabledRules  int64 `json:"enabled_rules"`
	DisabledRules int64 `json:"disabled_rules"`

	// Time-series data (last 24 hours, hourly buckets)
	AlertsByHour []HourlyCount `json:"alerts_by_hour"`

	CollectedAt time.Time `json:"collected_at"`
}

// HourlyCount represents the alert count for a specific hour.
type HourlyCount struct {
	Hour  string `json:"hour"` // ISO8601 format
	Count int64  `json:"count"`
}
