package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/finsightx/alert-engine/internal/domain"
)

const endpointColumns = `endpoint_id, rule_id, type, value, enabled, created_at, updated_at`

func scanEndpoint(row rowScanner) (*Endpoint, error) {
	var endpoint Endpoint
	if err := row.Scan(
		&endpoint.EndpointID,
		&endpoint.RuleID,
		&endpoint.Type,
		&endpoint.Value,
		&endpoint.Enabled,
		&endpoint.CreatedAt,
		&endpoint.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// CreateEndpoint adds a recipient for one channel of a rule.
func (db *DB) CreateEndpoint(ctx context.Context, ruleID, endpointType, value string) (*Endpoint, error) {
	channel := domain.Channel(endpointType)
	if !channel.Valid() {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown channel %q", endpointType)}
	}
	if !channel.RequiresEndpoint() {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("channel %q does not take endpoints", endpointType)}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &domain.ValidationError{Field: "value", Message: "is required"}
	}

	query := `
		INSERT INTO endpoints (endpoint_id, rule_id, type, value, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING ` + endpointColumns
	endpoint, err := scanEndpoint(db.conn.QueryRowContext(ctx, query, uuid.NewString(), ruleID, endpointType, value))
	if err != nil {
		return nil, mapWriteError(err, "create endpoint")
	}
	return endpoint, nil
}

// ListEndpoints retrieves the endpoints of a rule, optionally only enabled ones.
func (db *DB) ListEndpoints(ctx context.Context, ruleID string, enabledOnly bool) ([]*Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints WHERE rule_id = $1`
	if enabledOnly {
		query += ` AND enabled = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := make([]*Endpoint, 0)
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, rows.Err()
}

// DeleteEndpoint removes an endpoint.
func (db *DB) DeleteEndpoint(ctx context.Context, endpointID string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM endpoints WHERE endpoint_id = $1`, endpointID)
	if err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}
	return nil
}

// Recipients groups the enabled endpoint values of a rule by channel.
func (db *DB) Recipients(ctx context.Context, ruleID string) (map[domain.Channel][]string, error) {
	endpoints, err := db.ListEndpoints(ctx, ruleID, true)
	if err != nil {
		return nil, err
	}
	recipients := make(map[domain.Channel][]string)
	for _, e := range endpoints {
		ch := domain.Channel(e.Type)
		recipients[ch] = append(recipients[ch], e.Value)
	}
	return recipients, nil
}
