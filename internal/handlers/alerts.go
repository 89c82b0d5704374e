package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/domain"
)

// CreateAlertRequest is a manual or system alert not produced by a rule.
type CreateAlertRequest struct {
	RuleID         *string          `json:"rule_id"`
	OrganizationID string           `json:"organization_id"`
	EntityID       string           `json:"entity_id"`
	AlertType      string           `json:"alert_type"`
	Severity       string           `json:"severity"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	MetricValue    *decimal.Decimal `json:"metric_value"`
	ThresholdValue *decimal.Decimal `json:"threshold_value"`
}

// AlertActionRequest identifies the alert to acknowledge or resolve.
type AlertActionRequest struct {
	AlertID string `json:"alert_id"`
}

// UnreadCountResponse is the unread badge payload.
type UnreadCountResponse struct {
	OrganizationID string  `json:"organization_id"`
	EntityID       *string `json:"entity_id,omitempty"`
	Count          int64   `json:"count"`
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

// ListAlerts lists alerts newest first, or returns one alert when alert_id is given.
// GET /alerts
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if alertID := q.Get("alert_id"); alertID != "" {
		alert, err := h.db.GetAlert(r.Context(), alertID)
		if err != nil {
			h.writeError(w, err, "get alert", "alert_id", alertID)
			return
		}
		writeJSON(w, http.StatusOK, alert)
		return
	}

	filter := database.AlertFilter{
		OrganizationID: q.Get("organization_id"),
		EntityID:       q.Get("entity_id"),
		Severity:       q.Get("severity"),
		Status:         q.Get("status"),
	}
	if filter.Severity != "" && !domain.Severity(filter.Severity).Valid() {
		http.Error(w, "severity must be one of: low, medium, high, critical", http.StatusBadRequest)
		return
	}
	if filter.Status != "" && !domain.AlertStatus(filter.Status).Valid() {
		http.Error(w, "status must be one of: unread, acknowledged, resolved", http.StatusBadRequest)
		return
	}

	p := parsePagination(r)
	result, err := h.db.ListAlerts(r.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, err, "list alerts")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UnreadCount returns the unread badge count.
// GET /alerts/unread-count?organization_id=&entity_id=
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireQueryParam(w, r, "organization_id")
	if !ok {
		return
	}
	entityID := optionalQueryParam(r, "entity_id")

	count, err := h.db.CountUnread(r.Context(), orgID, entityID)
	if err != nil {
		h.writeError(w, err, "count unread alerts", "organization_id", orgID)
		return
	}
	writeJSON(w, http.StatusOK, UnreadCountResponse{
		OrganizationID: orgID,
		EntityID:       entityID,
		Count:          count,
	})
}

// CreateAlert stores a manual or system alert.
// POST /alerts
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordReceived()

	var req CreateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	alert, err := h.db.CreateAlert(r.Context(), database.NewAlertInput{
		RuleID:         req.RuleID,
		OrganizationID: req.OrganizationID,
		EntityID:       req.EntityID,
		AlertType:      req.AlertType,
		Severity:       domain.Severity(req.Severity),
		Title:          req.Title,
		Description:    req.Description,
		MetricValue:    nullDecimal(req.MetricValue),
		ThresholdValue: nullDecimal(req.ThresholdValue),
		TriggeredAt:    time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, err, "create alert", "organization_id", req.OrganizationID)
		return
	}

	h.metrics.IncrementCustom("alerts_created_manual")
	writeJSON(w, http.StatusCreated, alert)
}

// AcknowledgeAlert moves an alert from unread to acknowledged.
// POST /alerts/acknowledge
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, "acknowledge alert", h.db.AcknowledgeAlert)
}

// ResolveAlert moves an alert to resolved.
// POST /alerts/resolve
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, "resolve alert", h.db.ResolveAlert)
}

func (h *Handlers) transitionAlert(w http.ResponseWriter, r *http.Request, op string,
	apply func(ctx context.Context, alertID string) (*database.Alert, error)) {
	var req AlertActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	alert, err := apply(r.Context(), req.AlertID)
	if err != nil {
		h.writeError(w, err, op, "alert_id", req.AlertID)
		return
	}
	h.metrics.RecordProcessed(time.Since(start))
	writeJSON(w, http.StatusOK, alert)
}
