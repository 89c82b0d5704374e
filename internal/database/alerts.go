package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/finsightx/alert-engine/internal/domain"
)

const alertColumns = `alert_id, rule_id, organization_id, entity_id, alert_type, severity, title, description,
	metric_value, threshold_value, status, triggered_at, acknowledged_at, resolved_at, delivery_status`

func scanAlert(row rowScanner) (*Alert, error) {
	var (
		alert    Alert
		ruleID   sql.NullString
		ackAt    sql.NullTime
		resAt    sql.NullTime
		delivery sql.NullString
	)
	if err := row.Scan(
		&alert.AlertID,
		&ruleID,
		&alert.OrganizationID,
		&alert.EntityID,
		&alert.AlertType,
		&alert.Severity,
		&alert.Title,
		&alert.Description,
		&alert.MetricValue,
		&alert.ThresholdValue,
		&alert.Status,
		&alert.TriggeredAt,
		&ackAt,
		&resAt,
		&delivery,
	); err != nil {
		return nil, err
	}
	alert.RuleID = stringPtr(ruleID)
	alert.AcknowledgedAt = timePtr(ackAt)
	alert.ResolvedAt = timePtr(resAt)
	alert.DeliveryStatus = unmarshalDeliveryStatus(delivery, "alert_id", alert.AlertID)
	return &alert, nil
}

// insertAlert writes a new unread alert through q, which may be a transaction.
func insertAlert(ctx context.Context, q queryRower, in NewAlertInput) (*Alert, error) {
	triggeredAt := in.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (alert_id, rule_id, organization_id, entity_id, alert_type, severity, title,
			description, metric_value, threshold_value, status, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'unread', $11)
		RETURNING ` + alertColumns
	return scanAlert(q.QueryRowContext(ctx, query,
		uuid.NewString(),
		nullString(in.RuleID),
		in.OrganizationID,
		in.EntityID,
		in.AlertType,
		string(in.Severity),
		in.Title,
		in.Description,
		in.MetricValue,
		in.ThresholdValue,
		triggeredAt,
	))
}

// CreateAlert stores a manual or system alert. New alerts are always unread.
func (db *DB) CreateAlert(ctx context.Context, in NewAlertInput) (*Alert, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	alert, err := insertAlert(ctx, db.conn, in)
	if err != nil {
		return nil, mapWriteError(err, "create alert")
	}
	return alert, nil
}

// GetAlert retrieves an alert by ID.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_id = $1`
	alert, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts retrieves alerts matching filter, newest first.
func (db *DB) ListAlerts(ctx context.Context, filter AlertFilter, limit, offset int) (*AlertListResult, error) {
	limit, offset = clampPagination(limit, offset)

	var where whereBuilder
	if filter.OrganizationID != "" {
		where.add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.EntityID != "" {
		where.add("entity_id = $%d", filter.EntityID)
	}
	if filter.Severity != "" {
		where.add("severity = $%d", filter.Severity)
	}
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM alerts` + where.String()
	if err := db.conn.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM alerts%s ORDER BY triggered_at DESC, alert_id ASC LIMIT $%d OFFSET $%d`,
		alertColumns, where.String(), where.next(), where.next()+1)
	args := append(where.args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return &AlertListResult{Alerts: alerts, Total: total, Limit: limit, Offset: offset}, nil
}

// CountUnread returns the unread badge count for an organization, optionally
// narrowed to one entity.
func (db *DB) CountUnread(ctx context.Context, organizationID string, entityID *string) (int64, error) {
	if strings.TrimSpace(organizationID) == "" {
		return 0, &domain.ValidationError{Field: "organization_id", Message: "is required"}
	}

	query := `SELECT COUNT(*) FROM alerts WHERE organization_id = $1 AND status = 'unread'`
	args := []any{organizationID}
	if entityID != nil {
		query += ` AND entity_id = $2`
		args = append(args, *entityID)
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return count, nil
}

// AcknowledgeAlert moves an unread alert to acknowledged.
func (db *DB) AcknowledgeAlert(ctx context.Context, alertID string) (*Alert, error) {
	return db.transition(ctx, alertID, domain.StatusAcknowledged, "acknowledged_at")
}

// ResolveAlert moves an unread or acknowledged alert to resolved.
func (db *DB) ResolveAlert(ctx context.Context, alertID string) (*Alert, error) {
	return db.transition(ctx, alertID, domain.StatusResolved, "resolved_at")
}

// transition performs a conditional status update. The WHERE clause only
// matches rows in a status from which next is reachable, so concurrent
// transitions cannot both succeed.
func (db *DB) transition(ctx context.Context, alertID string, next domain.AlertStatus, stampColumn string) (*Alert, error) {
	sources := domain.SourceStatuses(next)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	query := fmt.Sprintf(`
		UPDATE alerts
		SET status = $2, %s = $3
		WHERE alert_id = $1 AND status = ANY($4)
		RETURNING %s`, stampColumn, alertColumns)
	alert, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID, string(next), time.Now().UTC(), pq.Array(from)))
	if err == nil {
		return alert, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}

	var current string
	err = db.conn.QueryRowContext(ctx, `SELECT status FROM alerts WHERE alert_id = $1`, alertID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alert status: %w", err)
	}
	return nil, &domain.InvalidTransitionError{AlertID: alertID, From: domain.AlertStatus(current), To: next}
}

// UpdateDeliveryStatus records per-channel delivery outcomes on an alert.
func (db *DB) UpdateDeliveryStatus(ctx context.Context, alertID string, status map[string]ChannelDelivery) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery status: %w", err)
	}

	result, err := db.conn.ExecContext(ctx, `UPDATE alerts SET delivery_status = $2 WHERE alert_id = $1`, alertID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	return nil
}
