package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/internal/events"
	"github.com/finsightx/alert-engine/pkg/metrics"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRule(ruleID string) *database.Rule {
	return &database.Rule{
		RuleID:               ruleID,
		OrganizationID:       "org-1",
		RuleName:             "Risk watch",
		MetricType:           "risk_score",
		ThresholdValue:       decimal.NewFromInt(70),
		ComparisonOperator:   "greater_than",
		Enabled:              true,
		Frequency:            "daily",
		NotificationChannels: []string{"email"},
		Version:              1,
		CreatedAt:            fixedTime,
		UpdatedAt:            fixedTime,
	}
}

func testAlert(alertID string, status domain.AlertStatus) *database.Alert {
	return &database.Alert{
		AlertID:        alertID,
		OrganizationID: "org-1",
		EntityID:       "company-1",
		AlertType:      "risk_score",
		Severity:       string(domain.SeverityHigh),
		Title:          "Risk watch",
		Status:         string(status),
		TriggeredAt:    fixedTime,
	}
}

// mockRepository implements Repository for testing. Unset callbacks return
// plausible defaults.
type mockRepository struct {
	CreateRuleFn                   func(ctx context.Context, in database.NewRuleInput) (*database.Rule, error)
	GetRuleFn                      func(ctx context.Context, ruleID string) (*database.Rule, error)
	ListRulesFn                    func(ctx context.Context, filter database.RuleFilter, limit, offset int) (*database.RuleListResult, error)
	UpdateRuleFn                   func(ctx context.Context, ruleID string, patch database.RulePatch, expectedVersion int) (*database.Rule, error)
	SetRuleEnabledFn               func(ctx context.Context, ruleID string, enabled bool) (*database.Rule, error)
	DisableRuleFn                  func(ctx context.Context, ruleID string) (*database.Rule, error)
	CreateEndpointFn               func(ctx context.Context, ruleID, endpointType, value string) (*database.Endpoint, error)
	ListEndpointsFn                func(ctx context.Context, ruleID string, enabledOnly bool) ([]*database.Endpoint, error)
	DeleteEndpointFn               func(ctx context.Context, endpointID string) error
	SetOrganizationAlertsEnabledFn func(ctx context.Context, organizationID string, enabled bool) (*database.Organization, error)
	SetCompanyAlertsEnabledFn      func(ctx context.Context, companyID string, enabled bool) (*database.Company, error)
	CreateAlertFn                  func(ctx context.Context, in database.NewAlertInput) (*database.Alert, error)
	GetAlertFn                     func(ctx context.Context, alertID string) (*database.Alert, error)
	ListAlertsFn                   func(ctx context.Context, filter database.AlertFilter, limit, offset int) (*database.AlertListResult, error)
	CountUnreadFn                  func(ctx context.Context, organizationID string, entityID *string) (int64, error)
	AcknowledgeAlertFn             func(ctx context.Context, alertID string) (*database.Alert, error)
	ResolveAlertFn                 func(ctx context.Context, alertID string) (*database.Alert, error)
	GetAlertStatsFn                func(ctx context.Context, organizationID string) (*database.AlertStats, error)
}

func (m *mockRepository) CreateRule(ctx context.Context, in database.NewRuleInput) (*database.Rule, error) {
	if m.CreateRuleFn != nil {
		return m.CreateRuleFn(ctx, in)
	}
	if err := in.RuleSpec.Validate(); err != nil {
		return nil, err
	}
	rule := testRule("rule-1")
	rule.OrganizationID = in.OrganizationID
	rule.RuleName = in.RuleName
	rule.Enabled = in.Enabled
	return rule, nil
}

func (m *mockRepository) GetRule(ctx context.Context, ruleID string) (*database.Rule, error) {
	if m.GetRuleFn != nil {
		return m.GetRuleFn(ctx, ruleID)
	}
	return testRule(ruleID), nil
}

func (m *mockRepository) ListRules(ctx context.Context, filter database.RuleFilter, limit, offset int) (*database.RuleListResult, error) {
	if m.ListRulesFn != nil {
		return m.ListRulesFn(ctx, filter, limit, offset)
	}
	return &database.RuleListResult{Rules: []*database.Rule{}, Limit: limit, Offset: offset}, nil
}

func (m *mockRepository) UpdateRule(ctx context.Context, ruleID string, patch database.RulePatch, expectedVersion int) (*database.Rule, error) {
	if m.UpdateRuleFn != nil {
		return m.UpdateRuleFn(ctx, ruleID, patch, expectedVersion)
	}
	rule := testRule(ruleID)
	rule.Version = expectedVersion + 1
	return rule, nil
}

func (m *mockRepository) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (*database.Rule, error) {
	if m.SetRuleEnabledFn != nil {
		return m.SetRuleEnabledFn(ctx, ruleID, enabled)
	}
	rule := testRule(ruleID)
	rule.Enabled = enabled
	return rule, nil
}

func (m *mockRepository) DisableRule(ctx context.Context, ruleID string) (*database.Rule, error) {
	if m.DisableRuleFn != nil {
		return m.DisableRuleFn(ctx, ruleID)
	}
	rule := testRule(ruleID)
	rule.Enabled = false
	return rule, nil
}

func (m *mockRepository) CreateEndpoint(ctx context.Context, ruleID, endpointType, value string) (*database.Endpoint, error) {
	if m.CreateEndpointFn != nil {
		return m.CreateEndpointFn(ctx, ruleID, endpointType, value)
	}
	return &database.Endpoint{EndpointID: "ep-1", RuleID: ruleID, Type: endpointType, Value: value, Enabled: true}, nil
}

func (m *mockRepository) ListEndpoints(ctx context.Context, ruleID string, enabledOnly bool) ([]*database.Endpoint, error) {
	if m.ListEndpointsFn != nil {
		return m.ListEndpointsFn(ctx, ruleID, enabledOnly)
	}
	return []*database.Endpoint{}, nil
}

func (m *mockRepository) DeleteEndpoint(ctx context.Context, endpointID string) error {
	if m.DeleteEndpointFn != nil {
		return m.DeleteEndpointFn(ctx, endpointID)
	}
	return nil
}

func (m *mockRepository) SetOrganizationAlertsEnabled(ctx context.Context, organizationID string, enabled bool) (*database.Organization, error) {
	if m.SetOrganizationAlertsEnabledFn != nil {
		return m.SetOrganizationAlertsEnabledFn(ctx, organizationID, enabled)
	}
	return &database.Organization{OrganizationID: organizationID, AlertsEnabled: enabled}, nil
}

func (m *mockRepository) SetCompanyAlertsEnabled(ctx context.Context, companyID string, enabled bool) (*database.Company, error) {
	if m.SetCompanyAlertsEnabledFn != nil {
		return m.SetCompanyAlertsEnabledFn(ctx, companyID, enabled)
	}
	return &database.Company{CompanyID: companyID, OrganizationID: "org-1", AlertsEnabled: enabled}, nil
}

func (m *mockRepository) CreateAlert(ctx context.Context, in database.NewAlertInput) (*database.Alert, error) {
	if m.CreateAlertFn != nil {
		return m.CreateAlertFn(ctx, in)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return testAlert("alert-1", domain.StatusUnread), nil
}

func (m *mockRepository) GetAlert(ctx context.Context, alertID string) (*database.Alert, error) {
	if m.GetAlertFn != nil {
		return m.GetAlertFn(ctx, alertID)
	}
	return testAlert(alertID, domain.StatusUnread), nil
}

func (m *mockRepository) ListAlerts(ctx context.Context, filter database.AlertFilter, limit, offset int) (*database.AlertListResult, error) {
	if m.ListAlertsFn != nil {
		return m.ListAlertsFn(ctx, filter, limit, offset)
	}
	return &database.AlertListResult{Alerts: []*database.Alert{}, Limit: limit, Offset: offset}, nil
}

func (m *mockRepository) CountUnread(ctx context.Context, organizationID string, entityID *string) (int64, error) {
	if m.CountUnreadFn != nil {
		return m.CountUnreadFn(ctx, organizationID, entityID)
	}
	return 0, nil
}

func (m *mockRepository) AcknowledgeAlert(ctx context.Context, alertID string) (*database.Alert, error) {
	if m.AcknowledgeAlertFn != nil {
		return m.AcknowledgeAlertFn(ctx, alertID)
	}
	return testAlert(alertID, domain.StatusAcknowledged), nil
}

func (m *mockRepository) ResolveAlert(ctx context.Context, alertID string) (*database.Alert, error) {
	if m.ResolveAlertFn != nil {
		return m.ResolveAlertFn(ctx, alertID)
	}
	return testAlert(alertID, domain.StatusResolved), nil
}

func (m *mockRepository) GetAlertStats(ctx context.Context, organizationID string) (*database.AlertStats, error) {
	if m.GetAlertStatsFn != nil {
		return m.GetAlertStatsFn(ctx, organizationID)
	}
	return &database.AlertStats{AlertsByStatus: map[string]int64{}, AlertsBySeverity: map[string]int64{}}, nil
}

// mockPublisher records rule.changed events.
type mockPublisher struct {
	mu     sync.Mutex
	events []*events.RuleChanged
	err    error
}

func (p *mockPublisher) PublishRuleChanged(_ context.Context, changed *events.RuleChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, changed)
	return nil
}

func (p *mockPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

// countingMetrics counts recorder calls.
type countingMetrics struct {
	mu                          sync.Mutex
	received, published, errors int
	custom                      map[string]int
}

func (c *countingMetrics) RecordReceived()               { c.mu.Lock(); c.received++; c.mu.Unlock() }
func (c *countingMetrics) RecordProcessed(time.Duration) {}
func (c *countingMetrics) RecordPublished()              { c.mu.Lock(); c.published++; c.mu.Unlock() }
func (c *countingMetrics) RecordError()                  { c.mu.Lock(); c.errors++; c.mu.Unlock() }
func (c *countingMetrics) IncrementCustom(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.custom == nil {
		c.custom = make(map[string]int)
	}
	c.custom[name]++
}

type mockMetricsReader struct {
	all map[string]*metrics.ServiceMetrics
	err error
}

func (m *mockMetricsReader) GetServiceMetrics(_ context.Context, name string) (*metrics.ServiceMetrics, error) {
	if sm, ok := m.all[name]; ok {
		return sm, nil
	}
	return nil, errors.New("redis: nil")
}

func (m *mockMetricsReader) GetAllServiceMetrics(context.Context) (map[string]*metrics.ServiceMetrics, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]*metrics.ServiceMetrics, len(m.all))
	for k, v := range m.all {
		out[k] = v
	}
	return out, nil
}
