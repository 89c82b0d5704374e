// Package evaluator runs the alert rule state machine: fetch the metric,
// compare against the threshold, gate on frequency, commit the alert and
// hand it off for delivery.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/dispatcher"
	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/internal/events"
	"github.com/finsightx/alert-engine/internal/metrics"
	"github.com/finsightx/alert-engine/internal/metricsource"
)

// Defaults for Config.
const (
	DefaultWorkers              = 10
	DefaultFetchTimeout         = 5 * time.Second
	DefaultMinRetriggerInterval = time.Hour
)

// Store is the subset of the database the evaluator needs.
type Store interface {
	ListEvaluationTargets(ctx context.Context) ([]*database.EvaluationTarget, error)
	TriggerRule(ctx context.Context, in database.TriggerInput) (*database.Alert, error)
	Recipients(ctx context.Context, ruleID string) (map[domain.Channel][]string, error)
	UpdateDeliveryStatus(ctx context.Context, alertID string, status map[string]database.ChannelDelivery) error
}

// Dispatcher delivers a committed alert to its channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification, channels []domain.Channel, recipients map[domain.Channel][]string) dispatcher.DispatchResult
}

// AlertPublisher announces committed alerts on alert.triggered.
type AlertPublisher interface {
	PublishAlertTriggered(ctx context.Context, triggered *events.AlertTriggered) error
}

// Config controls a cycle.
type Config struct {
	Workers      int
	FetchTimeout time.Duration
	// MinRetriggerInterval is the floor of every gating window. It also is
	// the whole window for high-risk-only rules, which have no calendar interval.
	MinRetriggerInterval time.Duration
	Now                  func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MinRetriggerInterval <= 0 {
		c.MinRetriggerInterval = DefaultMinRetriggerInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPublisher sets the alert.triggered publisher.
func WithPublisher(p AlertPublisher) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithMetrics sets the service metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Evaluator evaluates every enabled (rule, entity) target once per cycle.
type Evaluator struct {
	store      Store
	source     metricsource.Source
	dispatcher Dispatcher
	publisher  AlertPublisher
	metrics    Metrics
	cfg        Config
}

type noopPublisher struct{}

func (noopPublisher) PublishAlertTriggered(context.Context, *events.AlertTriggered) error { return nil }

// New creates an evaluator.
func New(store Store, source metricsource.Source, d Dispatcher, cfg Config, opts ...Option) *Evaluator {
	cfg.applyDefaults()
	e := &Evaluator{
		store:      store,
		source:     source,
		dispatcher: d,
		publisher:  noopPublisher{},
		metrics:    NoOpMetrics{},
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the result of evaluating one target.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeBelowThreshold
	OutcomeSuppressed
	OutcomeTriggered
	OutcomeConflict
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeBelowThreshold:
		return "below_threshold"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeTriggered:
		return "triggered"
	case OutcomeConflict:
		return "conflict"
	default:
		return "failed"
	}
}

// CycleResult summarizes one evaluation cycle.
type CycleResult struct {
	Evaluated      int
	Skipped        int
	BelowThreshold int
	Suppressed     int
	Triggered      int
	Conflicts      int
	Failed         int
	Duration       time.Duration
}

func (r *CycleResult) add(o Outcome) {
	r.Evaluated++
	switch o {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeBelowThreshold:
		r.BelowThreshold++
	case OutcomeSuppressed:
		r.Suppressed++
	case OutcomeTriggered:
		r.Triggered++
	case OutcomeConflict:
		r.Conflicts++
	default:
		r.Failed++
	}
}

// RunCycle evaluates every target on a bounded worker pool. Per-target
// errors are logged and counted, never returned; only failing to list the
// targets fails the cycle.
func (e *Evaluator) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()

	targets, err := e.store.ListEvaluationTargets(ctx)
	if err != nil {
		e.metrics.RecordError()
		return nil, fmt.Errorf("failed to list evaluation targets: %w", err)
	}

	result := &CycleResult{}
	var mu sync.Mutex

	jobs := make(chan *database.EvaluationTarget)
	var wg sync.WaitGroup
	workers := e.cfg.Workers
	if workers > len(targets) {
		workers = len(targets)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				o := e.safeEvaluate(ctx, t)
				metrics.EvaluationOutcomesTotal.WithLabelValues(o.String()).Inc()
				mu.Lock()
				result.add(o)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, t := range targets {
		select {
		case jobs <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(start)
	metrics.EvaluationCycleDuration.Observe(result.Duration.Seconds())
	e.metrics.RecordProcessed(result.Duration)

	slog.Info("Evaluation cycle completed",
		"targets", len(targets),
		"evaluated", result.Evaluated,
		"triggered", result.Triggered,
		"suppressed", result.Suppressed,
		"below_threshold", result.BelowThreshold,
		"skipped", result.Skipped,
		"conflicts", result.Conflicts,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, ctx.Err()
}

// safeEvaluate isolates a panicking target from the rest of the cycle.
func (e *Evaluator) safeEvaluate(ctx context.Context, t *database.EvaluationTarget) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("evaluator").Inc()
			slog.Error("Recovered from panic evaluating target",
				"rule_id", t.Rule.RuleID,
				"entity_id", t.EntityID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			e.metrics.RecordError()
			o = OutcomeFailed
		}
	}()
	return e.Evaluate(ctx, t)
}

// Evaluate runs the state machine for one (rule, entity) target.
func (e *Evaluator) Evaluate(ctx context.Context, t *database.EvaluationTarget) Outcome {
	rule := t.Rule
	e.metrics.RecordReceived()

	if !rule.Enabled {
		return OutcomeSkipped
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	value, err := e.source.CurrentValue(fetchCtx, t.EntityID, rule.MetricType)
	cancel()
	if err != nil {
		slog.Warn("Metric unavailable, skipping target",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
			"metric_type", rule.MetricType,
			"error", err,
		)
		return OutcomeSkipped
	}
	if value == nil {
		slog.Debug("No metric value, skipping target",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
			"metric_type", rule.MetricType,
		)
		return OutcomeSkipped
	}

	matched, err := domain.Compare(rule.ComparisonOperator, *value, rule.ThresholdValue)
	if err != nil {
		slog.Error("Rule cannot be compared", "rule_id", rule.RuleID, "error", err)
		e.metrics.RecordError()
		return OutcomeFailed
	}
	if !matched {
		return OutcomeBelowThreshold
	}

	severity := domain.SeverityForBreach(*value, rule.ThresholdValue)
	frequency := domain.Frequency(rule.Frequency)
	if frequency.HighRiskOnly() && !severity.AtLeast(domain.SeverityHigh) {
		slog.Debug("Breach below high-risk severity, suppressed",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
			"severity", severity,
		)
		return OutcomeSuppressed
	}

	now := e.cfg.Now().UTC()
	interval := GatingInterval(frequency, e.cfg.MinRetriggerInterval)
	if t.LastTriggeredAt != nil && now.Sub(*t.LastTriggeredAt) < interval {
		slog.Debug("Rule triggered inside gating window, suppressed",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
			"last_triggered_at", *t.LastTriggeredAt,
			"interval", interval,
		)
		return OutcomeSuppressed
	}

	alert, err := e.store.TriggerRule(ctx, database.TriggerInput{
		RuleID:      rule.RuleID,
		EntityID:    t.EntityID,
		TriggeredAt: now,
		MinInterval: interval,
		Alert:       buildAlertInput(rule, *value, severity),
	})
	if domain.IsConflict(err) {
		slog.Debug("Another evaluation already triggered this rule",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
		)
		return OutcomeConflict
	}
	if err != nil {
		slog.Error("Failed to record trigger",
			"rule_id", rule.RuleID,
			"entity_id", t.EntityID,
			"error", err,
		)
		e.metrics.RecordError()
		return OutcomeFailed
	}

	slog.Info("Alert triggered",
		"alert_id", alert.AlertID,
		"rule_id", rule.RuleID,
		"entity_id", t.EntityID,
		"severity", severity,
		"value", value.String(),
		"threshold", rule.ThresholdValue.String(),
	)

	e.handOff(ctx, rule, alert)
	return OutcomeTriggered
}

// GatingInterval is the minimum time between two triggers of a rule on one
// entity: the frequency's calendar interval, never less than floor.
func GatingInterval(f domain.Frequency, floor time.Duration) time.Duration {
	if iv := f.Interval(); iv > floor {
		return iv
	}
	return floor
}

func buildAlertInput(rule *database.Rule, value decimal.Decimal, severity domain.Severity) database.NewAlertInput {
	description := fmt.Sprintf("%s is %s (%s %s)",
		rule.MetricType, value.String(), rule.ComparisonOperator, rule.ThresholdValue.String())
	if def, ok := domain.LookupMetric(rule.MetricType); ok && def.Unit != "" {
		description += " " + def.Unit
	}
	return database.NewAlertInput{
		OrganizationID: rule.OrganizationID,
		AlertType:      rule.MetricType,
		Severity:       severity,
		Title:          rule.RuleName,
		Description:    description,
		MetricValue:    decimal.NewNullDecimal(value),
		ThresholdValue: decimal.NewNullDecimal(rule.ThresholdValue),
	}
}

// handOff delivers a committed alert, records per-channel delivery status and
// announces it on Kafka. Failures here never undo the alert.
func (e *Evaluator) handOff(ctx context.Context, rule *database.Rule, alert *database.Alert) {
	n := notificationFor(rule, alert)

	recipients, err := e.store.Recipients(ctx, rule.RuleID)
	if err != nil {
		slog.Error("Failed to load recipients", "rule_id", rule.RuleID, "alert_id", alert.AlertID, "error", err)
	}

	channels := make([]domain.Channel, 0, len(rule.NotificationChannels))
	for _, ch := range rule.NotificationChannels {
		channels = append(channels, domain.Channel(ch))
	}

	result := e.dispatcher.Dispatch(ctx, n, channels, recipients)

	status := make(map[string]database.ChannelDelivery, len(result))
	delivered := make(map[string]bool, len(result))
	for ch, res := range result {
		d := database.ChannelDelivery{Delivered: res.Delivered, Attempts: res.Attempts}
		if res.Error != nil {
			d.Error = res.Error.Error()
		}
		status[string(ch)] = d
		delivered[string(ch)] = res.Delivered
	}
	if err := e.store.UpdateDeliveryStatus(ctx, alert.AlertID, status); err != nil {
		slog.Error("Failed to persist delivery status", "alert_id", alert.AlertID, "error", err)
	}

	triggered := &events.AlertTriggered{
		AlertID:        alert.AlertID,
		RuleID:         rule.RuleID,
		OrganizationID: alert.OrganizationID,
		EntityID:       alert.EntityID,
		AlertType:      alert.AlertType,
		Severity:       alert.Severity,
		Title:          alert.Title,
		TriggeredAt:    alert.TriggeredAt,
		Delivered:      delivered,
	}
	if alert.MetricValue.Valid {
		triggered.MetricValue = alert.MetricValue.Decimal.String()
	}
	if alert.ThresholdValue.Valid {
		triggered.ThresholdValue = alert.ThresholdValue.Decimal.String()
	}
	if err := e.publisher.PublishAlertTriggered(ctx, triggered); err != nil {
		slog.Error("Failed to publish alert triggered event", "alert_id", alert.AlertID, "error", err)
		e.metrics.RecordError()
		return
	}
	e.metrics.RecordPublished()
}

func notificationFor(rule *database.Rule, alert *database.Alert) *domain.Notification {
	return &domain.Notification{
		AlertID:        alert.AlertID,
		RuleID:         rule.RuleID,
		RuleName:       rule.RuleName,
		OrganizationID: alert.OrganizationID,
		EntityID:       alert.EntityID,
		AlertType:      alert.AlertType,
		Severity:       domain.Severity(alert.Severity),
		Title:          alert.Title,
		Description:    alert.Description,
		MetricValue:    alert.MetricValue,
		ThresholdValue: alert.ThresholdValue,
		TriggeredAt:    alert.TriggeredAt,
	}
}
