package handlers

import (
	"context"
	"time"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/events"
	"github.com/finsightx/alert-engine/pkg/metrics"
)

// RulePublisher publishes rule.changed events so evaluators react without
// waiting for the next tick.
type RulePublisher interface {
	PublishRuleChanged(ctx context.Context, changed *events.RuleChanged) error
}

// Repository is the subset of database.DB the API needs.
type Repository interface {
	// Rules
	CreateRule(ctx context.Context, in database.NewRuleInput) (*database.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*database.Rule, error)
	ListRules(ctx context.Context, filter database.RuleFilter, limit, offset int) (*database.RuleListResult, error)
	UpdateRule(ctx context.Context, ruleID string, patch database.RulePatch, expectedVersion int) (*database.Rule, error)
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (*database.Rule, error)
	DisableRule(ctx context.Context, ruleID string) (*database.Rule, error)

	// Endpoints
	CreateEndpoint(ctx context.Context, ruleID, endpointType, value string) (*database.Endpoint, error)
	ListEndpoints(ctx context.Context, ruleID string, enabledOnly bool) ([]*database.Endpoint, error)
	DeleteEndpoint(ctx context.Context, endpointID string) error

	// Scope
	SetOrganizationAlertsEnabled(ctx context.Context, organizationID string, enabled bool) (*database.Organization, error)
	SetCompanyAlertsEnabled(ctx context.Context, companyID string, enabled bool) (*database.Company, error)

	// Alerts
	CreateAlert(ctx context.Context, in database.NewAlertInput) (*database.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*database.Alert, error)
	ListAlerts(ctx context.Context, filter database.AlertFilter, limit, offset int) (*database.AlertListResult, error)
	CountUnread(ctx context.Context, organizationID string, entityID *string) (int64, error)
	AcknowledgeAlert(ctx context.Context, alertID string) (*database.Alert, error)
	ResolveAlert(ctx context.Context, alertID string) (*database.Alert, error)
	GetAlertStats(ctx context.Context, organizationID string) (*database.AlertStats, error)
}

// ServiceMetricsReader reads the per-service snapshots written by pkg/metrics.
type ServiceMetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

// MetricsRecorder defines the interface for recording metrics.
// This uses the null object pattern - a no-op implementation avoids nil checks.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
}

// NoOpMetrics is a no-op implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (NoOpMetrics) RecordReceived()                 {}
func (NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (NoOpMetrics) RecordPublished()                {}
func (NoOpMetrics) RecordError()                    {}
func (NoOpMetrics) IncrementCustom(_ string)        {}
