package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RuleSpec is the user-editable definition of an alert rule.
type RuleSpec struct {
	OrganizationID       string
	CompanyID            *string
	RuleName             string
	MetricType           string
	ThresholdValue       decimal.Decimal
	ComparisonOperator   string
	Frequency            string
	NotificationChannels []string
}

// Validate checks the rule definition against the catalogs.
func (s RuleSpec) Validate() error {
	if strings.TrimSpace(s.OrganizationID) == "" {
		return &ValidationError{Field: "organization_id", Message: "is required"}
	}
	if s.CompanyID != nil && strings.TrimSpace(*s.CompanyID) == "" {
		return &ValidationError{Field: "company_id", Message: "cannot be blank when set"}
	}
	if strings.TrimSpace(s.RuleName) == "" {
		return &ValidationError{Field: "rule_name", Message: "is required"}
	}
	if _, ok := LookupMetric(s.MetricType); !ok {
		return &ValidationError{Field: "metric_type", Message: fmt.Sprintf("unknown metric type %q", s.MetricType)}
	}
	if _, ok := LookupOperator(s.ComparisonOperator); !ok {
		return &ValidationError{Field: "comparison_operator", Message: fmt.Sprintf("unknown operator %q", s.ComparisonOperator)}
	}
	if !Frequency(s.Frequency).Valid() {
		return &ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown frequency %q", s.Frequency)}
	}
	if len(s.NotificationChannels) == 0 {
		return &ValidationError{Field: "notification_channels", Message: "at least one channel is required"}
	}
	seen := make(map[string]struct{}, len(s.NotificationChannels))
	for _, ch := range s.NotificationChannels {
		if !Channel(ch).Valid() {
			return &ValidationError{Field: "notification_channels", Message: fmt.Sprintf("unknown channel %q", ch)}
		}
		if _, dup := seen[ch]; dup {
			return &ValidationError{Field: "notification_channels", Message: fmt.Sprintf("duplicate channel %q", ch)}
		}
		seen[ch] = struct{}{}
	}
	return nil
}

