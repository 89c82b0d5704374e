package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/internal/events"
)

// CreateRuleRequest represents a request to create an alert rule.
type CreateRuleRequest struct {
	OrganizationID       string           `json:"organization_id"`
	CompanyID            *string          `json:"company_id"`
	RuleName             string           `json:"rule_name"`
	MetricType           string           `json:"metric_type"`
	ThresholdValue       *decimal.Decimal `json:"threshold_value"`
	ComparisonOperator   string           `json:"comparison_operator"`
	Frequency            string           `json:"frequency"`
	NotificationChannels []string         `json:"notification_channels"`
	Enabled              *bool            `json:"enabled"`
}

// UpdateRuleRequest is a partial update guarded by the rule version.
type UpdateRuleRequest struct {
	Version              int              `json:"version"`
	RuleName             *string          `json:"rule_name"`
	MetricType           *string          `json:"metric_type"`
	ThresholdValue       *decimal.Decimal `json:"threshold_value"`
	ComparisonOperator   *string          `json:"comparison_operator"`
	Frequency            *string          `json:"frequency"`
	NotificationChannels []string         `json:"notification_channels"`
}

// SetEnabledRequest toggles a rule, company or organization.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// CreateRule creates a new rule and publishes a rule.changed event.
// POST /alert-rules
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordReceived()

	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ThresholdValue == nil {
		http.Error(w, "threshold_value is required", http.StatusBadRequest)
		return
	}

	in := database.NewRuleInput{
		RuleSpec: domain.RuleSpec{
			OrganizationID:       req.OrganizationID,
			CompanyID:            req.CompanyID,
			RuleName:             req.RuleName,
			MetricType:           req.MetricType,
			ThresholdValue:       *req.ThresholdValue,
			ComparisonOperator:   req.ComparisonOperator,
			Frequency:            req.Frequency,
			NotificationChannels: req.NotificationChannels,
		},
		Enabled: req.Enabled == nil || *req.Enabled,
	}

	ctx := r.Context()
	rule, err := h.db.CreateRule(ctx, in)
	if err != nil {
		h.writeError(w, err, "create rule", "organization_id", req.OrganizationID)
		return
	}

	h.publishRuleChanged(ctx, rule, events.ActionCreated)
	writeJSON(w, http.StatusCreated, rule)
}

// ListRules lists rules, or returns one rule when rule_id is given.
// GET /alert-rules
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ruleID := r.URL.Query().Get("rule_id"); ruleID != "" {
		rule, err := h.db.GetRule(ctx, ruleID)
		if err != nil {
			h.writeError(w, err, "get rule", "rule_id", ruleID)
			return
		}
		writeJSON(w, http.StatusOK, rule)
		return
	}

	enabledOnly, _, err := parseBoolParam(r, "enabled")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := database.RuleFilter{
		OrganizationID: r.URL.Query().Get("organization_id"),
		CompanyID:      optionalQueryParam(r, "company_id"),
		EnabledOnly:    enabledOnly,
	}

	p := parsePagination(r)
	result, err := h.db.ListRules(ctx, filter, p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, err, "list rules")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UpdateRule applies a partial update with optimistic locking.
// PUT /alert-rules?rule_id=
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordReceived()

	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Version <= 0 {
		http.Error(w, "version is required", http.StatusBadRequest)
		return
	}

	patch := database.RulePatch{
		RuleName:             req.RuleName,
		MetricType:           req.MetricType,
		ThresholdValue:       req.ThresholdValue,
		ComparisonOperator:   req.ComparisonOperator,
		Frequency:            req.Frequency,
		NotificationChannels: req.NotificationChannels,
	}

	ctx := r.Context()
	rule, err := h.db.UpdateRule(ctx, ruleID, patch, req.Version)
	if err != nil {
		h.writeError(w, err, "update rule", "rule_id", ruleID)
		return
	}

	h.publishRuleChanged(ctx, rule, events.ActionUpdated)
	writeJSON(w, http.StatusOK, rule)
}

// SetRuleEnabled enables or disables a rule. Repeating the same value is a
// no-op that still returns the rule.
// POST /alert-rules/enabled?rule_id=
func (h *Handlers) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req SetEnabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rule, err := h.db.SetRuleEnabled(ctx, ruleID, *req.Enabled)
	if err != nil {
		h.writeError(w, err, "set rule enabled", "rule_id", ruleID)
		return
	}

	action := events.ActionDisabled
	if rule.Enabled {
		action = events.ActionEnabled
	}
	h.publishRuleChanged(ctx, rule, action)
	writeJSON(w, http.StatusOK, rule)
}

// DisableRule soft-deletes a rule. Rules are never removed because alerts
// keep referring to them.
// DELETE /alert-rules?rule_id=
func (h *Handlers) DisableRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	ctx := r.Context()
	rule, err := h.db.DisableRule(ctx, ruleID)
	if err != nil {
		h.writeError(w, err, "disable rule", "rule_id", ruleID)
		return
	}

	h.publishRuleChanged(ctx, rule, events.ActionDisabled)
	writeJSON(w, http.StatusOK, rule)
}
