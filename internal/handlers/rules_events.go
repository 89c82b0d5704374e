package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/events"
)

// publishRuleChanged publishes a rule.changed event after a successful DB
// operation. Publish failures are logged; the next scheduled cycle picks up
// the change anyway.
func (h *Handlers) publishRuleChanged(ctx context.Context, rule *database.Rule, action string) {
	h.publish(ctx, &events.RuleChanged{
		RuleID:         rule.RuleID,
		OrganizationID: rule.OrganizationID,
		Action:         action,
		Version:        rule.Version,
		UpdatedAt:      rule.UpdatedAt.Unix(),
		SchemaVersion:  events.SchemaVersion,
	})
}

// publishScopeChanged announces an organization or company enablement change.
func (h *Handlers) publishScopeChanged(ctx context.Context, organizationID string) {
	h.publish(ctx, &events.RuleChanged{
		OrganizationID: organizationID,
		Action:         events.ActionScopeChanged,
		UpdatedAt:      time.Now().Unix(),
		SchemaVersion:  events.SchemaVersion,
	})
}

func (h *Handlers) publish(ctx context.Context, changed *events.RuleChanged) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishRuleChanged(ctx, changed); err != nil {
		h.metrics.RecordError()
		slog.Error("Failed to publish rule.changed event",
			"error", err,
			"rule_id", changed.RuleID,
			"action", changed.Action,
		)
		return
	}
	h.metrics.RecordPublished()
	h.metrics.IncrementCustom("kafka_rule_" + changed.Action)
}
