package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finsightx/alert-engine/internal/domain"
)

// TriggerRule atomically advances the (rule, entity) trigger clock, mirrors it
// on the rule and inserts the alert.
//
// The clock upsert only succeeds when no trigger exists inside MinInterval.
// When another evaluation got there first the transaction is rolled back and
// a *domain.ConcurrencyConflictError is returned, so at most one alert is
// written per rule, entity and window no matter how many evaluators race.
func (db *DB) TriggerRule(ctx context.Context, in TriggerInput) (*Alert, error) {
	if in.RuleID == "" || in.EntityID == "" {
		return nil, &domain.ValidationError{Message: "rule_id and entity_id are required"}
	}
	if in.TriggeredAt.IsZero() {
		in.TriggeredAt = time.Now().UTC()
	}
	in.Alert.TriggeredAt = in.TriggeredAt
	in.Alert.EntityID = in.EntityID
	ruleID := in.RuleID
	in.Alert.RuleID = &ruleID
	if err := in.Alert.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("Failed to roll back trigger transaction", "rule_id", in.RuleID, "error", rbErr)
		}
	}()

	cutoff := in.TriggeredAt.Add(-in.MinInterval)
	guardQuery := `
		INSERT INTO rule_entity_triggers (rule_id, entity_id, last_triggered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (rule_id, entity_id) DO UPDATE
		SET last_triggered_at = EXCLUDED.last_triggered_at
		WHERE rule_entity_triggers.last_triggered_at <= $4
		RETURNING last_triggered_at
	`
	var recorded time.Time
	err = tx.QueryRowContext(ctx, guardQuery, in.RuleID, in.EntityID, in.TriggeredAt, cutoff).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ConcurrencyConflictError{RuleID: in.RuleID, EntityID: in.EntityID}
	}
	if err != nil {
		return nil, mapWriteError(err, "record trigger")
	}

	ruleQuery := `
		UPDATE rules
		SET last_triggered_at = GREATEST(COALESCE(last_triggered_at, $2), $2)
		WHERE rule_id = $1
	`
	result, err := tx.ExecContext(ctx, ruleQuery, in.RuleID, in.TriggeredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule last_triggered_at: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("rule %s: %w", in.RuleID, domain.ErrNotFound)
	}

	alert, err := insertAlert(ctx, tx, in.Alert)
	if err != nil {
		return nil, mapWriteError(err, "insert alert")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trigger transaction: %w", err)
	}
	return alert, nil
}
