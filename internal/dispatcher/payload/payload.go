// Package payload provides payload builders for different notification channels.
package payload

import (
	"fmt"
	"strings"
	"time"

	"github.com/finsightx/alert-engine/internal/domain"
)

// smsMaxLength keeps a message inside a single concatenated SMS.
const smsMaxLength = 320

// EmailPayload represents email message content.
type EmailPayload struct {
	Subject string
	Body    string
}

// BuildEmailPayload builds email subject and body from a notification.
func BuildEmailPayload(n *domain.Notification) EmailPayload {
	return EmailPayload{
		Subject: fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Severity)), n.Title),
		Body:    buildEmailBody(n),
	}
}

func buildEmailBody(n *domain.Notification) string {
	var sb strings.Builder
	sb.WriteString("FinSight X Alert\n")
	sb.WriteString("================\n\n")
	sb.WriteString(fmt.Sprintf("Severity: %s\n", n.Severity))
	sb.WriteString(fmt.Sprintf("Alert: %s\n", n.Title))
	if n.RuleName != "" {
		sb.WriteString(fmt.Sprintf("Rule: %s\n", n.RuleName))
	}
	sb.WriteString(fmt.Sprintf("Metric: %s\n", n.AlertType))
	if n.MetricValue.Valid {
		sb.WriteString(fmt.Sprintf("Current value: %s\n", n.MetricValue.Decimal.String()))
	}
	if n.ThresholdValue.Valid {
		sb.WriteString(fmt.Sprintf("Threshold: %s\n", n.ThresholdValue.Decimal.String()))
	}
	sb.WriteString(fmt.Sprintf("Company: %s\n", n.EntityID))
	sb.WriteString(fmt.Sprintf("Triggered at: %s\n", n.TriggeredAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Alert ID: %s\n", n.AlertID))

	if n.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(n.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildSMSBody builds a short text message, truncated to fit one concatenated SMS.
func BuildSMSBody(n *domain.Notification) string {
	body := fmt.Sprintf("FinSight X %s alert: %s", strings.ToUpper(string(n.Severity)), n.Title)
	if n.MetricValue.Valid && n.ThresholdValue.Valid {
		body += fmt.Sprintf(" (%s %s vs threshold %s)", n.AlertType, n.MetricValue.Decimal.String(), n.ThresholdValue.Decimal.String())
	}
	if len(body) > smsMaxLength {
		body = body[:smsMaxLength-3] + "..."
	}
	return body
}

// PushPayload is the body sent to the push gateway.
type PushPayload struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data"`
}

// BuildPushPayload builds a push notification for one device token.
func BuildPushPayload(token string, n *domain.Notification) PushPayload {
	priority := "normal"
	if n.Severity.AtLeast(domain.SeverityHigh) {
		priority = "high"
	}
	return PushPayload{
		To:       token,
		Title:    fmt.Sprintf("%s alert", capitalize(string(n.Severity))),
		Body:     n.Title,
		Priority: priority,
		Data: map[string]string{
			"alert_id":        n.AlertID,
			"organization_id": n.OrganizationID,
			"entity_id":       n.EntityID,
			"alert_type":      n.AlertType,
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// InAppMessage is published to the organization's real-time feed.
type InAppMessage struct {
	Type           string `json:"type"`
	AlertID        string `json:"alert_id"`
	RuleID         string `json:"rule_id,omitempty"`
	OrganizationID string `json:"organization_id"`
	EntityID       string `json:"entity_id"`
	AlertType      string `json:"alert_type"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	TriggeredAt    string `json:"triggered_at"`
}

// BuildInAppMessage builds the real-time feed message for a notification.
func BuildInAppMessage(n *domain.Notification) InAppMessage {
	return InAppMessage{
		Type:           "alert.created",
		AlertID:        n.AlertID,
		RuleID:         n.RuleID,
		OrganizationID: n.OrganizationID,
		EntityID:       n.EntityID,
		AlertType:      n.AlertType,
		Severity:       string(n.Severity),
		Title:          n.Title,
		Description:    n.Description,
		TriggeredAt:    n.TriggeredAt.UTC().Format(time.RFC3339),
	}
}

// SlackPayload represents a Slack webhook payload.
type SlackPayload struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a Slack message attachment.
type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

// Field represents a field in a Slack attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildSlackPayload builds a Slack webhook payload from the notification.
func BuildSlackPayload(n *domain.Notification) SlackPayload {
	fields := []Field{
		{Title: "Severity", Value: string(n.Severity), Short: true},
		{Title: "Metric", Value: n.AlertType, Short: true},
		{Title: "Company", Value: n.EntityID, Short: true},
		{Title: "Alert ID", Value: n.AlertID, Short: true},
	}
	if n.MetricValue.Valid {
		fields = append(fields, Field{Title: "Value", Value: n.MetricValue.Decimal.String(), Short: true})
	}
	if n.ThresholdValue.Valid {
		fields = append(fields, Field{Title: "Threshold", Value: n.ThresholdValue.Decimal.String(), Short: true})
	}
	if n.RuleName != "" {
		fields = append(fields, Field{Title: "Rule", Value: n.RuleName, Short: false})
	}

	return SlackPayload{
		Attachments: []Attachment{
			{
				Color:     getSeverityColor(n.Severity),
				Title:     fmt.Sprintf("Alert: %s - %s", n.Severity, n.Title),
				Text:      n.Description,
				Fields:    fields,
				Timestamp: n.TriggeredAt.Unix(),
			},
		},
	}
}

// getSeverityColor returns the Slack color for a given severity.
func getSeverityColor(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "danger" // red
	case domain.SeverityHigh, domain.SeverityMedium:
		return "warning" // yellow
	default:
		return "good" // green
	}
}

// WebhookPayload represents a generic webhook payload.
type WebhookPayload struct {
	AlertID        string  `json:"alert_id"`
	RuleID         string  `json:"rule_id,omitempty"`
	OrganizationID string  `json:"organization_id"`
	EntityID       string  `json:"entity_id"`
	AlertType      string  `json:"alert_type"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	MetricValue    *string `json:"metric_value,omitempty"`
	ThresholdValue *string `json:"threshold_value,omitempty"`
	TriggeredAt    string  `json:"triggered_at"`
	Timestamp      string  `json:"timestamp"`
}

// BuildWebhookPayload builds a webhook payload from the notification.
// Numeric values are sent as strings to keep decimal precision.
func BuildWebhookPayload(n *domain.Notification) WebhookPayload {
	p := WebhookPayload{
		AlertID:        n.AlertID,
		RuleID:         n.RuleID,
		OrganizationID: n.OrganizationID,
		EntityID:       n.EntityID,
		AlertType:      n.AlertType,
		Severity:       string(n.Severity),
		Title:          n.Title,
		Description:    n.Description,
		TriggeredAt:    n.TriggeredAt.UTC().Format(time.RFC3339),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	if n.MetricValue.Valid {
		v := n.MetricValue.Decimal.String()
		p.MetricValue = &v
	}
	if n.ThresholdValue.Valid {
		v := n.ThresholdValue.Decimal.String()
		p.ThresholdValue = &v
	}
	return p
}
