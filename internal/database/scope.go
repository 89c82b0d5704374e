package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finsightx/alert-engine/internal/domain"
)

// SetOrganizationAlertsEnabled toggles alerting for a whole organization.
func (db *DB) SetOrganizationAlertsEnabled(ctx context.Context, organizationID string, enabled bool) (*Organization, error) {
	query := `
		UPDATE organizations
		SET alerts_enabled = $2, updated_at = NOW()
		WHERE organization_id = $1
		RETURNING organization_id, name, alerts_enabled, created_at, updated_at
	`
	var org Organization
	err := db.conn.QueryRowContext(ctx, query, organizationID, enabled).Scan(
		&org.OrganizationID,
		&org.Name,
		&org.AlertsEnabled,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", organizationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set organization alerts enabled: %w", err)
	}
	return &org, nil
}

// SetCompanyAlertsEnabled toggles alerting for one company.
func (db *DB) SetCompanyAlertsEnabled(ctx context.Context, companyID string, enabled bool) (*Company, error) {
	query := `
		UPDATE companies
		SET alerts_enabled = $2, updated_at = NOW()
		WHERE company_id = $1
		RETURNING company_id, organization_id, name, alerts_enabled, created_at, updated_at
	`
	var company Company
	err := db.conn.QueryRowContext(ctx, query, companyID, enabled).Scan(
		&company.CompanyID,
		&company.OrganizationID,
		&company.Name,
		&company.AlertsEnabled,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", companyID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set company alerts enabled: %w", err)
	}
	return &company, nil
}

// UpsertOrganization creates an organization or renames an existing one.
// The alerts_enabled flag of an existing organization is left as is.
func (db *DB) UpsertOrganization(ctx context.Context, organizationID, name string) (*Organization, error) {
	query := `
		INSERT INTO organizations (organization_id, name)
		VALUES ($1, $2)
		ON CONFLICT (organization_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING organization_id, name, alerts_enabled, created_at, updated_at
	`
	var org Organization
	err := db.conn.QueryRowContext(ctx, query, organizationID, name).Scan(
		&org.OrganizationID,
		&org.Name,
		&org.AlertsEnabled,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, mapWriteError(err, "upsert organization")
	}
	return &org, nil
}

// UpsertCompany creates a company under an organization or renames it.
func (db *DB) UpsertCompany(ctx context.Context, companyID, organizationID, name string) (*Company, error) {
	query := `
		INSERT INTO companies (company_id, organization_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING company_id, organization_id, name, alerts_enabled, created_at, updated_at
	`
	var company Company
	err := db.conn.QueryRowContext(ctx, query, companyID, organizationID, name).Scan(
		&company.CompanyID,
		&company.OrganizationID,
		&company.Name,
		&company.AlertsEnabled,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		return nil, mapWriteError(err, "upsert company")
	}
	return &company, nil
}
