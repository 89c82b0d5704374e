package handlers

import (
	"net/http"
)

// SetOrganizationAlertsEnabled toggles alerting for an organization.
// PUT /organizations/alerts-enabled?organization_id=
func (h *Handlers) SetOrganizationAlertsEnabled(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireQueryParam(w, r, "organization_id")
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
	org, err := h.db.SetOrganizationAlertsEnabled(ctx, orgID, *req.Enabled)
	if err != nil {
		h.writeError(w, err, "set organization alerts enabled", "organization_id", orgID)
		return
	}

	h.publishScopeChanged(ctx, org.OrganizationID)
	writeJSON(w, http.StatusOK, org)
}

// SetCompanyAlertsEnabled toggles alerting for a company.
// PUT /companies/alerts-enabled?company_id=
func (h *Handlers) SetCompanyAlertsEnabled(w http.ResponseWriter, r *http.Request) {
	companyID, ok := requireQueryParam(w, r, "company_id")
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
	company, err := h.db.SetCompanyAlertsEnabled(ctx, companyID, *req.Enabled)
	if err != nil {
		h.writeError(w, err, "set company alerts enabled", "company_id", companyID)
		return
	}

	h.publishScopeChanged(ctx, company.OrganizationID)
	writeJSON(w, http.StatusOK, company)
}
