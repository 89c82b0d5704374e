package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/finsightx/alert-engine/internal/domain"
)

const ruleColumns = `rule_id, organization_id, company_id, rule_name, metric_type, threshold_value,
	comparison_operator, enabled, frequency, notification_channels, last_triggered_at, version,
	created_at, updated_at`

const ruleColumnsR = `r.rule_id, r.organization_id, r.company_id, r.rule_name, r.metric_type, r.threshold_value,
	r.comparison_operator, r.enabled, r.frequency, r.notification_channels, r.last_triggered_at, r.version,
	r.created_at, r.updated_at`

// scanRule reads one rule row in ruleColumns order, followed by any extra destinations.
func scanRule(row rowScanner, extra ...any) (*Rule, error) {
	var (
		rule     Rule
		company  sql.NullString
		channels pq.StringArray
		last     sql.NullTime
	)
	dest := []any{
		&rule.RuleID,
		&rule.OrganizationID,
		&company,
		&rule.RuleName,
		&rule.MetricType,
		&rule.ThresholdValue,
		&rule.ComparisonOperator,
		&rule.Enabled,
		&rule.Frequency,
		&channels,
		&last,
		&rule.Version,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rule.CompanyID = stringPtr(company)
	rule.NotificationChannels = []string(channels)
	rule.LastTriggeredAt = timePtr(last)
	return &rule, nil
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a predicate; format must contain a single %d for the placeholder index.
func (w *whereBuilder) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) addRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// next returns the placeholder index following the current arguments.
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

// CreateRule validates and stores a new alert rule.
func (db *DB) CreateRule(ctx context.Context, in NewRuleInput) (*Rule, error) {
	if err := in.RuleSpec.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO rules (rule_id, organization_id, company_id, rule_name, metric_type, threshold_value,
			comparison_operator, enabled, frequency, notification_channels, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW())
		RETURNING ` + ruleColumns
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query,
		uuid.NewString(),
		in.OrganizationID,
		nullString(in.CompanyID),
		strings.TrimSpace(in.RuleName),
		in.MetricType,
		in.ThresholdValue,
		in.ComparisonOperator,
		in.Enabled,
		in.Frequency,
		pq.Array(in.NotificationChannels),
	))
	if err != nil {
		return nil, mapWriteError(err, "create rule")
	}
	return rule, nil
}

// GetRule retrieves a rule by ID.
func (db *DB) GetRule(ctx context.Context, ruleID string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE rule_id = $1`
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules retrieves rules matching filter, oldest first.
func (db *DB) ListRules(ctx context.Context, filter RuleFilter, limit, offset int) (*RuleListResult, error) {
	limit, offset = clampPagination(limit, offset)

	var where whereBuilder
	if filter.OrganizationID != "" {
		where.add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.CompanyID != nil {
		// Organization-wide rules apply to every company too.
		where.add("(company_id = $%d OR company_id IS NULL)", *filter.CompanyID)
	}
	if filter.EnabledOnly {
		where.addRaw("enabled = TRUE")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM rules` + where.String()
	if err := db.conn.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM rules%s ORDER BY created_at ASC, rule_id ASC LIMIT $%d OFFSET $%d`,
		ruleColumns, where.String(), where.next(), where.next()+1)
	args := append(where.args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return &RuleListResult{Rules: rules, Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateRule applies a partial update with optimistic locking.
// The merged rule is validated before anything is written.
func (db *DB) UpdateRule(ctx context.Context, ruleID string, patch RulePatch, expectedVersion int) (*Rule, error) {
	current, err := db.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("rule %s expected version %d, found %d: %w", ruleID, expectedVersion, current.Version, domain.ErrVersionMismatch)
	}

	merged := patch.Apply(current.Spec())
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE rules
		SET rule_name = $2,
		    metric_type = $3,
		    threshold_value = $4,
		    comparison_operator = $5,
		    frequency = $6,
		    notification_channels = $7,
		    version = version + 1,
		    updated_at = NOW()
		WHERE rule_id = $1 AND version = $8
		RETURNING ` + ruleColumns
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query,
		ruleID,
		strings.TrimSpace(merged.RuleName),
		merged.MetricType,
		merged.ThresholdValue,
		merged.ComparisonOperator,
		merged.Frequency,
		pq.Array(merged.NotificationChannels),
		expectedVersion,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.versionOrNotFound(ctx, ruleID, expectedVersion)
	}
	if err != nil {
		return nil, mapWriteError(err, "update rule")
	}
	return rule, nil
}

// versionOrNotFound distinguishes a lost optimistic-lock race from a missing rule.
func (db *DB) versionOrNotFound(ctx context.Context, ruleID string, expectedVersion int) error {
	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM rules WHERE rule_id = $1)`
	if err := db.conn.QueryRowContext(ctx, checkQuery, ruleID).Scan(&exists); err == nil && exists {
		return fmt.Errorf("rule %s expected version %d: %w", ruleID, expectedVersion, domain.ErrVersionMismatch)
	}
	return fmt.Errorf("rule %s: %w", ruleID, domain.ErrNotFound)
}

// SetRuleEnabled sets the enabled flag. It is idempotent: the version only
// moves when the flag actually changes, and the current row is returned either way.
func (db *DB) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (*Rule, error) {
	query := `
		UPDATE rules
		SET version = CASE WHEN enabled = $2 THEN version ELSE version + 1 END,
		    updated_at = CASE WHEN enabled = $2 THEN updated_at ELSE NOW() END,
		    enabled = $2
		WHERE rule_id = $1
		RETURNING ` + ruleColumns
	rule, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID, enabled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set rule enabled: %w", err)
	}
	return rule, nil
}

// DisableRule soft-deletes a rule. Rules are never removed so that alerts keep their provenance.
func (db *DB) DisableRule(ctx context.Context, ruleID string) (*Rule, error) {
	return db.SetRuleEnabled(ctx, ruleID, false)
}

// ListEvaluationTargets expands every enabled rule into one target per
// in-scope company, skipping organizations and companies with alerts disabled.
// Each target carries the per-entity trigger clock.
func (db *DB) ListEvaluationTargets(ctx context.Context) ([]*EvaluationTarget, error) {
	query := `
		SELECT ` + ruleColumnsR + `, c.company_id, t.last_triggered_at
		FROM rules r
		JOIN organizations o ON o.organization_id = r.organization_id
		JOIN companies c ON c.organization_id = r.organization_id
			AND (r.company_id IS NULL OR c.company_id = r.company_id)
		LEFT JOIN rule_entity_triggers t ON t.rule_id = r.rule_id AND t.entity_id = c.company_id
		WHERE r.enabled = TRUE AND o.alerts_enabled = TRUE AND c.alerts_enabled = TRUE
		ORDER BY r.created_at ASC, c.company_id ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation targets: %w", err)
	}
	defer rows.Close()

	targets := make([]*EvaluationTarget, 0)
	for rows.Next() {
		var (
			entityID string
			last     sql.NullTime
		)
		rule, err := scanRule(rows, &entityID, &last)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation target: %w", err)
		}
		targets = append(targets, &EvaluationTarget{
			Rule:            rule,
			EntityID:        entityID,
			LastTriggeredAt: timePtr(last),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluation targets: %w", err)
	}
	return targets, nil
}
