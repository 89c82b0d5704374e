package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/domain"
)

// metricProfile is the plausible value range of a metric and the threshold
// seeded rules use for it.
type metricProfile struct {
	metric    domain.MetricType
	operator  string
	threshold decimal.Decimal
	min, max  float64
	places    int32
}

var profiles = []metricProfile{
	{domain.MetricRevenueDrop, domain.OperatorGreaterThan, decimal.NewFromInt(15), 0, 40, 2},
	{domain.MetricRiskScore, domain.OperatorGreaterThan, decimal.NewFromInt(70), 0, 100, 1},
	{domain.MetricComplianceIssue, domain.OperatorGreaterThan, decimal.Zero, 0, 3, 0},
	{domain.MetricFraudDetected, domain.OperatorGreaterThan, decimal.Zero, 0, 2, 0},
	{domain.MetricDebtToEquity, domain.OperatorGreaterThan, decimal.RequireFromString("2.5"), 0, 4, 2},
}

var (
	frequencies      = []domain.Frequency{domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly, domain.FrequencyHighRiskOnly}
	externalChannels = []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush, domain.ChannelSlack, domain.ChannelWebhook}
)

type seedCompany struct {
	ID   string
	Name string
}

type seedEndpoint struct {
	Type  domain.Channel
	Value string
}

type seedRule struct {
	Spec      domain.RuleSpec
	Endpoints []seedEndpoint
}

type seedOrganization struct {
	ID        string
	Name      string
	Companies []seedCompany
	Rules     []seedRule
}

type seedSample struct {
	EntityID   string
	MetricType string
	Value      decimal.Decimal
	ObservedAt time.Time
}

type plan struct {
	Organizations []seedOrganization
	Samples       []seedSample
}

// buildPlan generates organizations with companies, one to five rules each
// and a short metric history per company. The same source yields the same plan.
func buildPlan(r *rand.Rand, organizations, companiesPerOrg, samplesPerMetric int, now time.Time) plan {
	var p plan
	for i := 1; i <= organizations; i++ {
		org := seedOrganization{
			ID:   fmt.Sprintf("org-%03d", i),
			Name: fmt.Sprintf("Organization %d", i),
		}
		for j := 1; j <= companiesPerOrg; j++ {
			company := seedCompany{
				ID:   fmt.Sprintf("company-%03d-%02d", i, j),
				Name: fmt.Sprintf("Company %d-%d", i, j),
			}
			org.Companies = append(org.Companies, company)
			p.Samples = append(p.Samples, buildSamples(r, company.ID, samplesPerMetric, now)...)
		}

		numRules := r.IntN(5) + 1
		for k := 0; k < numRules; k++ {
			org.Rules = append(org.Rules, buildRule(r, org, k))
		}
		p.Organizations = append(p.Organizations, org)
	}
	return p
}

func buildRule(r *rand.Rand, org seedOrganization, n int) seedRule {
	profile := profiles[r.IntN(len(profiles))]
	frequency := frequencies[r.IntN(len(frequencies))]

	spec := domain.RuleSpec{
		OrganizationID:     org.ID,
		RuleName:           fmt.Sprintf("%s %s #%d", profile.metric, frequency, n+1),
		MetricType:         string(profile.metric),
		ThresholdValue:     profile.threshold,
		ComparisonOperator: profile.operator,
		Frequency:          string(frequency),
	}
	// Half the rules are scoped to one company, the rest to the organization.
	if len(org.Companies) > 0 && r.IntN(2) == 0 {
		companyID := org.Companies[r.IntN(len(org.Companies))].ID
		spec.CompanyID = &companyID
	}

	var rule seedRule
	spec.NotificationChannels = []string{string(domain.ChannelInApp)}
	for _, i := range r.Perm(len(externalChannels))[:r.IntN(3)] {
		ch := externalChannels[i]
		spec.NotificationChannels = append(spec.NotificationChannels, string(ch))
		rule.Endpoints = append(rule.Endpoints, seedEndpoint{Type: ch, Value: endpointValue(ch, org.ID, n)})
	}
	rule.Spec = spec
	return rule
}

func endpointValue(ch domain.Channel, organizationID string, n int) string {
	switch ch {
	case domain.ChannelEmail:
		return fmt.Sprintf("alerts+%s-%d@example.com", organizationID, n+1)
	case domain.ChannelSMS:
		return fmt.Sprintf("+1555%07d", len(organizationID)*1000+n)
	case domain.ChannelPush:
		return fmt.Sprintf("device-%s-%d", organizationID, n+1)
	case domain.ChannelSlack:
		return fmt.Sprintf("https://hooks.slack.example.com/services/%s/%d", organizationID, n+1)
	default:
		return fmt.Sprintf("https://webhook.example.com/%s/rule-%d", organizationID, n+1)
	}
}

// buildSamples emits count samples per metric, one hour apart, ending at now.
func buildSamples(r *rand.Rand, entityID string, count int, now time.Time) []seedSample {
	samples := make([]seedSample, 0, count*len(profiles))
	for _, profile := range profiles {
		for i := count - 1; i >= 0; i-- {
			v := profile.min + r.Float64()*(profile.max-profile.min)
			samples = append(samples, seedSample{
				EntityID:   entityID,
				MetricType: string(profile.metric),
				Value:      decimal.NewFromFloat(v).Round(profile.places),
				ObservedAt: now.Add(-time.Duration(i) * time.Hour),
			})
		}
	}
	return samples
}
