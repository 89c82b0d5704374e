package database

import (
	"context"
	"fmt"
	"time"
)

// GetAlertStats aggregates alert and rule counts, optionally for one organization.
func (db *DB) GetAlertStats(ctx context.Context, organizationID string) (*AlertStats, error) {
	stats := &AlertStats{
		AlertsByStatus:   make(map[string]int64),
		AlertsBySeverity: make(map[string]int64),
		AlertsByHour:     make([]HourlyCount, 0),
		CollectedAt:      time.Now().UTC(),
	}

	// $1 = '' matches every organization.
	orgFilter := `($1 = '' OR organization_id = $1)`

	statusQuery := `SELECT status, COUNT(*) FROM alerts WHERE ` + orgFilter + ` GROUP BY status`
	if err := db.groupCounts(ctx, statusQuery, organizationID, func(status string, count int64) {
		stats.AlertsByStatus[status] = count
		stats.TotalAlerts += count
	}); err != nil {
		return nil, fmt.Errorf("failed to query alert status: %w", err)
	}

	severityQuery := `SELECT severity, COUNT(*) FROM alerts WHERE ` + orgFilter + ` GROUP BY severity`
	if err := db.groupCounts(ctx, severityQuery, organizationID, func(severity string, count int64) {
		stats.AlertsBySeverity[severity] = count
	}); err != nil {
		return nil, fmt.Errorf("failed to query alert severity: %w", err)
	}

	last24hQuery := `
		SELECT COUNT(*) FROM alerts
		WHERE ` + orgFilter + ` AND triggered_at >= NOW() - INTERVAL '24 hours'
	`
	if err := db.conn.QueryRowContext(ctx, last24hQuery, organizationID).Scan(&stats.AlertsLast24h); err != nil {
		return nil, fmt.Errorf("failed to query last 24h alerts: %w", err)
	}

	hourlyQuery := `
		SELECT date_trunc('hour', triggered_at) AS hour, COUNT(*)
		FROM alerts
		WHERE ` + orgFilter + ` AND triggered_at >= NOW() - INTERVAL '24 hours'
		GROUP BY date_trunc('hour', triggered_at)
		ORDER BY hour ASC
	`
	hourlyRows, err := db.conn.QueryContext(ctx, hourlyQuery, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly alerts: %w", err)
	}
	defer hourlyRows.Close()

	for hourlyRows.Next() {
		var hour time.Time
		var count int64
		if err := hourlyRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("failed to scan hourly count: %w", err)
		}
		stats.AlertsByHour = append(stats.AlertsByHour, HourlyCount{
			Hour:  hour.UTC().Format(time.RFC3339),
			Count: count,
		})
	}
	if err := hourlyRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hourly alerts: %w", err)
	}

	rulesQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE enabled = true),
			COUNT(*) FILTER (WHERE enabled = false)
		FROM rules
		WHERE ` + orgFilter
	if err := db.conn.QueryRowContext(ctx, rulesQuery, organizationID).Scan(
		&stats.TotalRules,
		&stats.EnabledRules,
		&stats.DisabledRules,
	); err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	return stats, nil
}

func (db *DB) groupCounts(ctx context.Context, query, organizationID string, fn func(key string, count int64)) error {
	rows, err := db.conn.QueryContext(ctx, query, organizationID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		fn(key, count)
	}
	return rows.Err()
}
