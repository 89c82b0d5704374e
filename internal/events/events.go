// Package events defines the Kafka event payloads exchanged by the alert
// engine binaries.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Topic names.
const (
	TopicRuleChanged    = "rule.changed"
	TopicAlertTriggered = "alert.triggered"
)

// SchemaVersion is stamped on every event.
const SchemaVersion = 1

// RuleChanged represents a rule change event published to rule.changed topic.
type RuleChanged struct {
	RuleID         string `json:"rule_id"`
	OrganizationID string `json:"organization_id"`
	Action         string `json:"action"` // CREATED, UPDATED, ENABLED, DISABLED
	Version        int    `json:"version"`
	UpdatedAt      int64  `json:"updated_at"` // Unix timestamp
	SchemaVersion  int    `json:"schema_version"`
}

// Valid actions for RuleChanged. Scope toggles on companies and
// organizations are published as ActionScopeChanged with an empty rule id.
const (
	ActionCreated      = "CREATED"
	ActionUpdated      = "UPDATED"
	ActionEnabled      = "ENABLED"
	ActionDisabled     = "DISABLED"
	ActionScopeChanged = "SCOPE_CHANGED"
)

// ValidAction reports whether a is a known RuleChanged action.
func ValidAction(a string) bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionEnabled, ActionDisabled, ActionScopeChanged:
		return true
	}
	return false
}

// EncodeRuleChanged serializes a rule change to JSON.
func EncodeRuleChanged(e *RuleChanged) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule changed event: %w", err)
	}
	return data, nil
}

// DecodeRuleChanged parses a rule.changed message value.
func DecodeRuleChanged(data []byte) (*RuleChanged, error) {
	var e RuleChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule changed event: %w", err)
	}
	if !ValidAction(e.Action) {
		return nil, fmt.Errorf("unknown rule changed action %q", e.Action)
	}
	return &e, nil
}

// AlertTriggered is published once per committed alert.
type AlertTriggered struct {
	AlertID        string
	RuleID         string
	OrganizationID string
	EntityID       string
	AlertType      string
	Severity       string
	Title          string
	MetricValue    string // decimal text, empty when unknown
	ThresholdValue string
	TriggeredAt    time.Time
	Delivered      map[string]bool // channel -> delivered
}

// EncodeAlertTriggered serializes the event as a protobuf Struct.
func EncodeAlertTriggered(e *AlertTriggered) ([]byte, error) {
	delivered := make(map[string]any, len(e.Delivered))
	for ch, ok := range e.Delivered {
		delivered[ch] = ok
	}

	s, err := structpb.NewStruct(map[string]any{
		"schema_version":  SchemaVersion,
		"alert_id":        e.AlertID,
		"rule_id":         e.RuleID,
		"organization_id": e.OrganizationID,
		"entity_id":       e.EntityID,
		"alert_type":      e.AlertType,
		"severity":        e.Severity,
		"title":           e.Title,
		"metric_value":    e.MetricValue,
		"threshold_value": e.ThresholdValue,
		"triggered_at":    e.TriggeredAt.UTC().Format(time.RFC3339Nano),
		"delivered":       delivered,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build alert triggered struct: %w", err)
	}

	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert triggered event: %w", err)
	}
	return data, nil
}

// DecodeAlertTriggered parses an alert.triggered message value.
func DecodeAlertTriggered(data []byte) (*AlertTriggered, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert triggered event: %w", err)
	}

	fields := s.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	e := &AlertTriggered{
		AlertID:        str("alert_id"),
		RuleID:         str("rule_id"),
		OrganizationID: str("organization_id"),
		EntityID:       str("entity_id"),
		AlertType:      str("alert_type"),
		Severity:       str("severity"),
		Title:          str("title"),
		MetricValue:    str("metric_value"),
		ThresholdValue: str("threshold_value"),
		Delivered:      make(map[string]bool),
	}
	if e.AlertID == "" {
		return nil, fmt.Errorf("alert triggered event missing alert_id")
	}

	if ts := str("triggered_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid triggered_at %q: %w", ts, err)
		}
		e.TriggeredAt = t
	}
	for ch, v := range fields["delivered"].GetStructValue().GetFields() {
		e.Delivered[ch] = v.GetBoolValue()
	}
	return e, nil
}
