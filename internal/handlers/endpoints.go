package handlers

import (
	"net/http"
)

// CreateEndpointRequest represents a request to add a recipient to a rule.
type CreateEndpointRequest struct {
	RuleID string `json:"rule_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

// CreateEndpoint adds a recipient address for one channel of a rule.
// POST /alert-rules/endpoints
func (h *Handlers) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req CreateEndpointRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RuleID == "" {
		http.Error(w, "rule_id is required", http.StatusBadRequest)
		return
	}

	endpoint, err := h.db.CreateEndpoint(r.Context(), req.RuleID, req.Type, req.Value)
	if err != nil {
		h.writeError(w, err, "create endpoint", "rule_id", req.RuleID)
		return
	}
	writeJSON(w, http.StatusCreated, endpoint)
}

// ListEndpoints lists the recipients of a rule.
// GET /alert-rules/endpoints?rule_id=
func (h *Handlers) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	endpoints, err := h.db.ListEndpoints(r.Context(), ruleID, false)
	if err != nil {
		h.writeError(w, err, "list endpoints", "rule_id", ruleID)
		return
	}
	writeJSON(w, http.StatusOK, endpoints)
}

// DeleteEndpoint removes a recipient.
// DELETE /alert-rules/endpoints?endpoint_id=
func (h *Handlers) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := requireQueryParam(w, r, "endpoint_id")
	if !ok {
		return
	}

	if err := h.db.DeleteEndpoint(r.Context(), endpointID); err != nil {
		h.writeError(w, err, "delete endpoint", "endpoint_id", endpointID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
