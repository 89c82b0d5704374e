// Package domain holds the alert engine's vocabulary: the metric and operator
// catalogs, frequencies, channels, severities, alert statuses and the error
// taxonomy shared by the stores, the evaluator and the API.
package domain

import (
	"fmt"
	"sort"
	"sync"
)

// MetricType names a metric produced by the document-analysis pipeline.
type MetricType string

// Built-in metric types.
const (
	MetricRevenueDrop     MetricType = "revenue_drop"
	MetricRiskScore       MetricType = "risk_score"
	MetricComplianceIssue MetricType = "compliance_issue"
	MetricFraudDetected   MetricType = "fraud_detected"
	MetricDebtToEquity    MetricType = "debt_to_equity"
)

// MetricDefinition describes a metric type and the units its values are reported in.
// Rule thresholds are always expressed in the same unit.
type MetricDefinition struct {
	Name        MetricType `json:"name"`
	Unit        string     `json:"unit"`
	Description string     `json:"description"`
}

var metricCatalog = struct {
	mu   sync.RWMutex
	defs map[MetricType]MetricDefinition
}{
	defs: map[MetricType]MetricDefinition{
		MetricRevenueDrop:     {Name: MetricRevenueDrop, Unit: "percent", Description: "Period-over-period revenue decline"},
		MetricRiskScore:       {Name: MetricRiskScore, Unit: "score_0_100", Description: "Composite document risk score"},
		MetricComplianceIssue: {Name: MetricComplianceIssue, Unit: "count", Description: "Open compliance findings"},
		MetricFraudDetected:   {Name: MetricFraudDetected, Unit: "count", Description: "Fraud indicators flagged by analysis"},
		MetricDebtToEquity:    {Name: MetricDebtToEquity, Unit: "ratio", Description: "Total liabilities over shareholder equity"},
	},
}

// RegisterMetric adds or replaces a metric definition.
func RegisterMetric(def MetricDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("metric name cannot be empty")
	}
	metricCatalog.mu.Lock()
	defer metricCatalog.mu.Unlock()
	metricCatalog.defs[def.Name] = def
	return nil
}

// LookupMetric returns the definition for name, if registered.
func LookupMetric(name string) (MetricDefinition, bool) {
	metricCatalog.mu.RLock()
	defer metricCatalog.mu.RUnlock()
	def, ok := metricCatalog.defs[MetricType(name)]
	return def, ok
}

// Metrics returns every registered metric, sorted by name.
func Metrics() []MetricDefinition {
	metricCatalog.mu.RLock()
	defs := make([]MetricDefinition, 0, len(metricCatalog.defs))
	for _, def := range metricCatalog.defs {
		defs = append(defs, def)
	}
	metricCatalog.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Catalog is the serializable view of every registry, served to the UI.
type Catalog struct {
	Metrics     []MetricDefinition `json:"metrics"`
	Operators   []string           `json:"operators"`
	Frequencies []Frequency        `json:"frequencies"`
	Channels    []Channel          `json:"channels"`
	Severities  []Severity         `json:"severities"`
}

// CurrentCatalog snapshots the registries.
func CurrentCatalog() Catalog {
	return Catalog{
		Metrics:     Metrics(),
		Operators:   Operators(),
		Frequencies: Frequencies(),
		Channels:    Channels(),
		Severities:  Severities(),
	}
}
