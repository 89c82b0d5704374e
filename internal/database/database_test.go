package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/domain"
)

var (
	ruleCols = []string{"rule_id", "organization_id", "company_id", "rule_name", "metric_type", "threshold_value",
		"comparison_operator", "enabled", "frequency", "notification_channels", "last_triggered_at", "version",
		"created_at", "updated_at"}
	alertCols = []string{"alert_id", "rule_id", "organization_id", "entity_id", "alert_type", "severity", "title",
		"description", "metric_value", "threshold_value", "status", "triggered_at", "acknowledged_at", "resolved_at",
		"delivery_status"}
	fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func ruleRows(enabled bool, version int) *sqlmock.Rows {
	return sqlmock.NewRows(ruleCols).AddRow(
		"rule-1", "org-1", nil, "High risk", "risk_score", "70", "greater_than",
		enabled, "daily", "{email,in_app}", nil, version, fixedNow, fixedNow,
	)
}

func alertRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows(alertCols).AddRow(
		"alert-1", "rule-1", "org-1", "company-1", "risk_score", "high", "High risk", "",
		"91", "70", status, fixedNow, nil, nil, nil,
	)
}

func validInput() NewRuleInput {
	return NewRuleInput{
		RuleSpec: domain.RuleSpec{
			OrganizationID:       "org-1",
			RuleName:             "High risk",
			MetricType:           "risk_score",
			ThresholdValue:       decimal.NewFromInt(70),
			ComparisonOperator:   "greater_than",
			Frequency:            "daily",
			NotificationChannels: []string{"email", "in_app"},
		},
		Enabled: true,
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

// TestNewDB tests the NewDB constructor with an unreachable DSN.
func TestNewDB(t *testing.T) {
	db, err := NewDB("invalid-dsn")
	if err == nil {
		db.Close()
		t.Fatal("NewDB() expected error for invalid DSN")
	}
}

// TestDB_Close tests the Close method.
func TestDB_Close(t *testing.T) {
	db := &DB{conn: nil}
	if err := db.Close(); err != nil {
		t.Errorf("Close() with nil conn error = %v, want nil", err)
	}
}

func TestDB_CreateRule(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		mutate    func(*NewRuleInput)
		setupMock func()
		wantErr   bool
		wantIs    error
		errMsg    string
	}{
		{
			name: "successful create",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO rules").
					WithArgs(sqlmock.AnyArg(), "org-1", nil, "High risk", "risk_score", sqlmock.AnyArg(),
						"greater_than", true, "daily", sqlmock.AnyArg()).
					WillReturnRows(ruleRows(true, 1))
			},
		},
		{
			name:      "invalid metric never reaches the database",
			mutate:    func(in *NewRuleInput) { in.MetricType = "ebitda" },
			setupMock: func() {},
			wantErr:   true,
			errMsg:    "metric_type",
		},
		{
			name: "unknown organization",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO rules").WillReturnError(&pq.Error{Code: "23503"})
			},
			wantErr: true,
			wantIs:  domain.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO rules").WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
			errMsg:  "failed to create rule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			tt.setupMock()
			rule, err := d.CreateRule(ctx, in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateRule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("CreateRule() error = %v, want %v", err, tt.wantIs)
			}
			if tt.errMsg != "" && err != nil && !contains(err.Error(), tt.errMsg) {
				t.Errorf("CreateRule() error = %v, want error containing %v", err, tt.errMsg)
			}
			if !tt.wantErr {
				if rule.RuleID != "rule-1" || !rule.ThresholdValue.Equal(decimal.NewFromInt(70)) {
					t.Errorf("CreateRule() = %+v", rule)
				}
				if len(rule.NotificationChannels) != 2 || rule.NotificationChannels[1] != "in_app" {
					t.Errorf("NotificationChannels = %v", rule.NotificationChannels)
				}
				if rule.CompanyID != nil || rule.LastTriggeredAt != nil {
					t.Errorf("nullable fields should be nil: %+v", rule)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Mock expectations were not met: %v", err)
			}
		})
	}
}

func TestDB_GetRule_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("FROM rules WHERE rule_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := d.GetRule(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRule() error = %v, want ErrNotFound", err)
	}
}

func TestDB_ListRules(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY created_at ASC").
		WithArgs("org-1", 200, 0).
		WillReturnRows(ruleRows(true, 1))

	result, err := d.ListRules(context.Background(), RuleFilter{OrganizationID: "org-1", EnabledOnly: true}, 1000, -5)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if result.Total != 1 || len(result.Rules) != 1 {
		t.Errorf("ListRules() = %+v", result)
	}
	if result.Limit != 200 || result.Offset != 0 {
		t.Errorf("pagination = %d/%d, want 200/0", result.Limit, result.Offset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_ListRules_CompanyIncludesOrganizationWide(t *testing.T) {
	d, mock := newMockDB(t)
	company := "company-1"

	mock.ExpectQuery(regexp.QuoteMeta("WHERE organization_id = $1 AND (company_id = $2 OR company_id IS NULL)")).
		WithArgs("org-1", company).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("(company_id = $2 OR company_id IS NULL) ORDER BY created_at ASC")).
		WithArgs("org-1", company, 50, 0).
		WillReturnRows(ruleRows(true, 2))

	result, err := d.ListRules(context.Background(), RuleFilter{OrganizationID: "org-1", CompanyID: &company}, 50, 0)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if result.Total != 2 || len(result.Rules) != 1 {
		t.Errorf("ListRules() = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_UpdateRule(t *testing.T) {
	ctx := context.Background()
	newThreshold := decimal.NewFromInt(80)
	badOperator := "approximately"

	tests := []struct {
		name      string
		patch     RulePatch
		version   int
		setupMock func(mock sqlmock.Sqlmock)
		wantIs    error
		wantValid bool
	}{
		{
			name:    "successful update",
			patch:   RulePatch{ThresholdValue: &newThreshold},
			version: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM rules WHERE rule_id").WithArgs("rule-1").WillReturnRows(ruleRows(true, 1))
				mock.ExpectQuery("UPDATE rules").
					WithArgs("rule-1", "High risk", "risk_score", sqlmock.AnyArg(), "greater_than", "daily", sqlmock.AnyArg(), 1).
					WillReturnRows(ruleRows(true, 2))
			},
		},
		{
			name:    "stale version",
			patch:   RulePatch{ThresholdValue: &newThreshold},
			version: 3,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM rules WHERE rule_id").WithArgs("rule-1").WillReturnRows(ruleRows(true, 1))
			},
			wantIs: domain.ErrVersionMismatch,
		},
		{
			name:    "invalid merge is rejected",
			patch:   RulePatch{ComparisonOperator: &badOperator},
			version: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM rules WHERE rule_id").WithArgs("rule-1").WillReturnRows(ruleRows(true, 1))
			},
			wantValid: true,
		},
		{
			name:    "lost race with concurrent update",
			patch:   RulePatch{ThresholdValue: &newThreshold},
			version: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM rules WHERE rule_id").WithArgs("rule-1").WillReturnRows(ruleRows(true, 1))
				mock.ExpectQuery("UPDATE rules").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("SELECT EXISTS").WithArgs("rule-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantIs: domain.ErrVersionMismatch,
		},
		{
			name:    "missing rule",
			patch:   RulePatch{ThresholdValue: &newThreshold},
			version: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM rules WHERE rule_id").WithArgs("rule-1").WillReturnError(sql.ErrNoRows)
			},
			wantIs: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newMockDB(t)
			tt.setupMock(mock)

			rule, err := d.UpdateRule(ctx, "rule-1", tt.patch, tt.version)
			switch {
			case tt.wantIs != nil:
				if !errors.Is(err, tt.wantIs) {
					t.Errorf("UpdateRule() error = %v, want %v", err, tt.wantIs)
				}
			case tt.wantValid:
				if !domain.IsValidation(err) {
					t.Errorf("UpdateRule() error = %v, want ValidationError", err)
				}
			default:
				if err != nil {
					t.Fatalf("UpdateRule() error = %v", err)
				}
				if rule.Version != 2 {
					t.Errorf("Version = %d, want 2", rule.Version)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Mock expectations were not met: %v", err)
			}
		})
	}
}

func TestDB_SetRuleEnabled(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE rules").WithArgs("rule-1", false).WillReturnRows(ruleRows(false, 2))
	rule, err := d.DisableRule(ctx, "rule-1")
	if err != nil {
		t.Fatalf("DisableRule() error = %v", err)
	}
	if rule.Enabled {
		t.Error("rule should be disabled")
	}

	mock.ExpectQuery("UPDATE rules").WithArgs("gone", true).WillReturnError(sql.ErrNoRows)
	if _, err := d.SetRuleEnabled(ctx, "gone", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetRuleEnabled() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_ListEvaluationTargets(t *testing.T) {
	d, mock := newMockDB(t)

	cols := append(append([]string{}, ruleCols...), "company_id", "last_triggered_at")
	lastFired := fixedNow.Add(-2 * time.Hour)
	rows := sqlmock.NewRows(cols).
		AddRow("rule-1", "org-1", nil, "High risk", "risk_score", "70", "greater_than",
			true, "daily", "{email}", lastFired, 1, fixedNow, fixedNow, "company-1", lastFired).
		AddRow("rule-1", "org-1", nil, "High risk", "risk_score", "70", "greater_than",
			true, "daily", "{email}", lastFired, 1, fixedNow, fixedNow, "company-2", nil)
	mock.ExpectQuery("FROM rules r").WillReturnRows(rows)

	targets, err := d.ListEvaluationTargets(context.Background())
	if err != nil {
		t.Fatalf("ListEvaluationTargets() error = %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}
	if targets[0].EntityID != "company-1" || targets[0].LastTriggeredAt == nil {
		t.Errorf("targets[0] = %+v", targets[0])
	}
	if targets[1].EntityID != "company-2" || targets[1].LastTriggeredAt != nil {
		t.Errorf("targets[1] = %+v", targets[1])
	}
}

func TestDB_CreateEndpoint(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	if _, err := d.CreateEndpoint(ctx, "rule-1", "in_app", "x"); !domain.IsValidation(err) {
		t.Errorf("in_app endpoint error = %v, want ValidationError", err)
	}
	if _, err := d.CreateEndpoint(ctx, "rule-1", "email", "  "); !domain.IsValidation(err) {
		t.Errorf("blank value error = %v, want ValidationError", err)
	}

	mock.ExpectQuery("INSERT INTO endpoints").
		WithArgs(sqlmock.AnyArg(), "rule-1", "email", "cfo@example.com").
		WillReturnError(&pq.Error{Code: "23505"})
	if _, err := d.CreateEndpoint(ctx, "rule-1", "email", "cfo@example.com"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate endpoint error = %v, want ErrAlreadyExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_Recipients(t *testing.T) {
	d, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"endpoint_id", "rule_id", "type", "value", "enabled", "created_at", "updated_at"}).
		AddRow("e1", "rule-1", "email", "a@example.com", true, fixedNow, fixedNow).
		AddRow("e2", "rule-1", "email", "b@example.com", true, fixedNow, fixedNow).
		AddRow("e3", "rule-1", "sms", "+15550100", true, fixedNow, fixedNow)
	mock.ExpectQuery("FROM endpoints WHERE rule_id").WithArgs("rule-1").WillReturnRows(rows)

	got, err := d.Recipients(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("Recipients() error = %v", err)
	}
	if len(got[domain.ChannelEmail]) != 2 || len(got[domain.ChannelSMS]) != 1 {
		t.Errorf("Recipients() = %v", got)
	}
}

func TestDB_DeleteEndpoint_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM endpoints").WithArgs("e9").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := d.DeleteEndpoint(context.Background(), "e9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteEndpoint() error = %v, want ErrNotFound", err)
	}
}

func TestDB_SetCompanyAlertsEnabled(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE companies").
		WithArgs("company-1", false).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "organization_id", "name", "alerts_enabled", "created_at", "updated_at"}).
			AddRow("company-1", "org-1", "Acme", false, fixedNow, fixedNow))

	company, err := d.SetCompanyAlertsEnabled(context.Background(), "company-1", false)
	if err != nil {
		t.Fatalf("SetCompanyAlertsEnabled() error = %v", err)
	}
	if company.AlertsEnabled {
		t.Error("AlertsEnabled should be false")
	}

	mock.ExpectQuery("UPDATE organizations").WithArgs("org-x", true).WillReturnError(sql.ErrNoRows)
	if _, err := d.SetOrganizationAlertsEnabled(context.Background(), "org-x", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetOrganizationAlertsEnabled() error = %v, want ErrNotFound", err)
	}
}

func TestDB_UpsertScope(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("org-1", "Northwind").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "name", "alerts_enabled", "created_at", "updated_at"}).
			AddRow("org-1", "Northwind", true, fixedNow, fixedNow))
	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("company-1", "org-1", "Acme").
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "organization_id", "name", "alerts_enabled", "created_at", "updated_at"}).
			AddRow("company-1", "org-1", "Acme", true, fixedNow, fixedNow))

	org, err := d.UpsertOrganization(context.Background(), "org-1", "Northwind")
	if err != nil {
		t.Fatalf("UpsertOrganization() error = %v", err)
	}
	if !org.AlertsEnabled {
		t.Error("new organization should have alerts enabled")
	}
	company, err := d.UpsertCompany(context.Background(), "company-1", "org-1", "Acme")
	if err != nil {
		t.Fatalf("UpsertCompany() error = %v", err)
	}
	if company.OrganizationID != "org-1" {
		t.Errorf("OrganizationID = %q", company.OrganizationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDB_UpsertCompany_UnknownOrganization(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("company-1", "org-missing", "Acme").
		WillReturnError(&pq.Error{Code: "23503"})

	if _, err := d.UpsertCompany(context.Background(), "company-1", "org-missing", "Acme"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpsertCompany() error = %v, want ErrNotFound", err)
	}
}

func TestDB_CreateAlert(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	if _, err := d.CreateAlert(ctx, NewAlertInput{OrganizationID: "org-1"}); !domain.IsValidation(err) {
		t.Errorf("CreateAlert() error = %v, want ValidationError", err)
	}

	mock.ExpectQuery("INSERT INTO alerts").
		WithArgs(sqlmock.AnyArg(), nil, "org-1", "company-1", "manual", "medium", "Check filing", "",
			nil, nil, sqlmock.AnyArg()).
		WillReturnRows(alertRows("unread"))

	alert, err := d.CreateAlert(ctx, NewAlertInput{
		OrganizationID: "org-1",
		EntityID:       "company-1",
		AlertType:      "manual",
		Severity:       domain.SeverityMedium,
		Title:          "Check filing",
	})
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if alert.Status != string(domain.StatusUnread) {
		t.Errorf("Status = %s, want unread", alert.Status)
	}
	if !alert.MetricValue.Valid || !alert.MetricValue.Decimal.Equal(decimal.NewFromInt(91)) {
		t.Errorf("MetricValue = %v", alert.MetricValue)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_ListAlerts(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org-1", "unread").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY triggered_at DESC").
		WithArgs("org-1", "unread", 50, 0).
		WillReturnRows(alertRows("unread"))

	result, err := d.ListAlerts(context.Background(), AlertFilter{OrganizationID: "org-1", Status: "unread"}, 0, 0)
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if result.Total != 1 || len(result.Alerts) != 1 || result.Limit != 50 {
		t.Errorf("ListAlerts() = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_CountUnread(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()
	entity := "company-1"

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org-1", "company-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	got, err := d.CountUnread(ctx, "org-1", &entity)
	if err != nil || got != 3 {
		t.Errorf("CountUnread() = %d, %v; want 3, nil", got, err)
	}
	if _, err := d.CountUnread(ctx, "", nil); !domain.IsValidation(err) {
		t.Errorf("CountUnread() without org error = %v, want ValidationError", err)
	}
}

func TestDB_AlertTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		call      func(d *DB) (*Alert, error)
		setupMock func(mock sqlmock.Sqlmock)
		check     func(t *testing.T, alert *Alert, err error)
	}{
		{
			name: "acknowledge unread",
			call: func(d *DB) (*Alert, error) { return d.AcknowledgeAlert(ctx, "alert-1") },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE alerts").
					WithArgs("alert-1", "acknowledged", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(alertRows("acknowledged"))
			},
			check: func(t *testing.T, alert *Alert, err error) {
				if err != nil || alert.Status != "acknowledged" {
					t.Errorf("AcknowledgeAlert() = %v, %v", alert, err)
				}
			},
		},
		{
			name: "acknowledge resolved is invalid",
			call: func(d *DB) (*Alert, error) { return d.AcknowledgeAlert(ctx, "alert-1") },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE alerts").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("SELECT status FROM alerts").
					WithArgs("alert-1").
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("resolved"))
			},
			check: func(t *testing.T, _ *Alert, err error) {
				var terr *domain.InvalidTransitionError
				if !errors.As(err, &terr) {
					t.Fatalf("error = %v, want InvalidTransitionError", err)
				}
				if terr.From != domain.StatusResolved || terr.To != domain.StatusAcknowledged {
					t.Errorf("transition = %s -> %s", terr.From, terr.To)
				}
			},
		},
		{
			name: "resolve missing alert",
			call: func(d *DB) (*Alert, error) { return d.ResolveAlert(ctx, "nope") },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE alerts").WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery("SELECT status FROM alerts").WithArgs("nope").WillReturnError(sql.ErrNoRows)
			},
			check: func(t *testing.T, _ *Alert, err error) {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("error = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name: "resolve acknowledged",
			call: func(d *DB) (*Alert, error) { return d.ResolveAlert(ctx, "alert-1") },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE alerts").
					WithArgs("alert-1", "resolved", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(alertRows("resolved"))
			},
			check: func(t *testing.T, alert *Alert, err error) {
				if err != nil || alert.Status != "resolved" {
					t.Errorf("ResolveAlert() = %v, %v", alert, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newMockDB(t)
			tt.setupMock(mock)
			alert, err := tt.call(d)
			tt.check(t, alert, err)
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Mock expectations were not met: %v", err)
			}
		})
	}
}

func TestDB_UpdateDeliveryStatus(t *testing.T) {
	d, mock := newMockDB(t)
	status := map[string]ChannelDelivery{
		"email": {Delivered: false, Attempts: 2, Error: "smtp timeout"},
		"sms":   {Delivered: true, Attempts: 1},
	}

	mock.ExpectExec("UPDATE alerts SET delivery_status").
		WithArgs("alert-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := d.UpdateDeliveryStatus(context.Background(), "alert-1", status); err != nil {
		t.Fatalf("UpdateDeliveryStatus() error = %v", err)
	}

	mock.ExpectExec("UPDATE alerts SET delivery_status").
		WithArgs("alert-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := d.UpdateDeliveryStatus(context.Background(), "alert-9", status); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateDeliveryStatus() error = %v, want ErrNotFound", err)
	}
}

func TestScanAlert_DeliveryStatus(t *testing.T) {
	d, mock := newMockDB(t)
	rows := sqlmock.NewRows(alertCols).AddRow(
		"alert-1", nil, "org-1", "company-1", "manual", "low", "t", "", nil, nil, "unread",
		fixedNow, nil, nil, []byte(`{"email":{"delivered":true,"attempts":1}}`),
	)
	mock.ExpectQuery("FROM alerts WHERE alert_id").WithArgs("alert-1").WillReturnRows(rows)

	alert, err := d.GetAlert(context.Background(), "alert-1")
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if alert.RuleID != nil {
		t.Errorf("RuleID = %v, want nil", *alert.RuleID)
	}
	if alert.MetricValue.Valid {
		t.Error("MetricValue should be null")
	}
	if got := alert.DeliveryStatus["email"]; !got.Delivered || got.Attempts != 1 {
		t.Errorf("DeliveryStatus = %+v", alert.DeliveryStatus)
	}
}

func triggerInput() TriggerInput {
	return TriggerInput{
		RuleID:      "rule-1",
		EntityID:    "company-1",
		TriggeredAt: fixedNow,
		MinInterval: 24 * time.Hour,
		Alert: NewAlertInput{
			OrganizationID: "org-1",
			AlertType:      "risk_score",
			Severity:       domain.SeverityHigh,
			Title:          "High risk",
			MetricValue:    decimal.NewNullDecimal(decimal.NewFromInt(91)),
			ThresholdValue: decimal.NewNullDecimal(decimal.NewFromInt(70)),
		},
	}
}

func TestDB_TriggerRule(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rule_entity_triggers").
		WithArgs("rule-1", "company-1", fixedNow, fixedNow.Add(-24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"last_triggered_at"}).AddRow(fixedNow))
	mock.ExpectExec("UPDATE rules SET last_triggered_at").
		WithArgs("rule-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO alerts").
		WithArgs(sqlmock.AnyArg(), "rule-1", "org-1", "company-1", "risk_score", "high", "High risk", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnRows(alertRows("unread"))
	mock.ExpectCommit()

	alert, err := d.TriggerRule(context.Background(), triggerInput())
	if err != nil {
		t.Fatalf("TriggerRule() error = %v", err)
	}
	if alert.Status != "unread" || alert.RuleID == nil || *alert.RuleID != "rule-1" {
		t.Errorf("TriggerRule() = %+v", alert)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_TriggerRule_GuardRejects(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rule_entity_triggers").
		WillReturnRows(sqlmock.NewRows([]string{"last_triggered_at"}))
	mock.ExpectRollback()

	_, err := d.TriggerRule(context.Background(), triggerInput())
	if !domain.IsConflict(err) {
		t.Fatalf("TriggerRule() error = %v, want ConcurrencyConflictError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no alert insert or commit expected: %v", err)
	}
}

func TestDB_TriggerRule_AlertInsertFailsRollsBack(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rule_entity_triggers").
		WillReturnRows(sqlmock.NewRows([]string{"last_triggered_at"}).AddRow(fixedNow))
	mock.ExpectExec("UPDATE rules SET last_triggered_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO alerts").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if _, err := d.TriggerRule(context.Background(), triggerInput()); err == nil {
		t.Fatal("TriggerRule() expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_GetAlertStats(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("GROUP BY status").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("unread", 4).AddRow("resolved", 6))
	mock.ExpectQuery("GROUP BY severity").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).AddRow("high", 10))
	mock.ExpectQuery("SELECT COUNT").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("date_trunc").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"hour", "count"}).AddRow(fixedNow, 3))
	mock.ExpectQuery("FROM rules").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "enabled", "disabled"}).AddRow(5, 4, 1))

	stats, err := d.GetAlertStats(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetAlertStats() error = %v", err)
	}
	if stats.TotalAlerts != 10 || stats.AlertsByStatus["unread"] != 4 || stats.AlertsBySeverity["high"] != 10 {
		t.Errorf("alert counts = %+v", stats)
	}
	if stats.AlertsLast24h != 3 || len(stats.AlertsByHour) != 1 || stats.EnabledRules != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}
