package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/dispatcher"
	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/internal/events"
)

type triggerKey struct{ ruleID, entityID string }

// memStore is an in-memory Store whose TriggerRule applies the same guard as
// the SQL upsert: the clock only advances when the previous trigger is at
// least MinInterval old.
type memStore struct {
	mu           sync.Mutex
	rules        []*database.Rule
	entities     map[string][]string // rule id -> entity ids
	triggers     map[triggerKey]time.Time
	alerts       []*database.Alert
	clockUpdates int
	recipients   map[domain.Channel][]string
	delivery     map[string]map[string]database.ChannelDelivery

	listErr    error
	triggerErr error
}

func newMemStore() *memStore {
	return &memStore{
		entities: make(map[string][]string),
		triggers: make(map[triggerKey]time.Time),
		delivery: make(map[string]map[string]database.ChannelDelivery),
	}
}

func (s *memStore) addRule(r *database.Rule, entityIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	s.entities[r.RuleID] = entityIDs
}

func (s *memStore) setLastTriggered(ruleID, entityID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[triggerKey{ruleID, entityID}] = at
}

func (s *memStore) ListEvaluationTargets(context.Context) ([]*database.EvaluationTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*database.EvaluationTarget
	for _, r := range s.rules {
		if !r.Enabled {
			continue
		}
		for _, entity := range s.entities[r.RuleID] {
			t := &database.EvaluationTarget{Rule: r, EntityID: entity}
			if last, ok := s.triggers[triggerKey{r.RuleID, entity}]; ok {
				last := last
				t.LastTriggeredAt = &last
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) TriggerRule(_ context.Context, in database.TriggerInput) (*database.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggerErr != nil {
		return nil, s.triggerErr
	}

	key := triggerKey{in.RuleID, in.EntityID}
	cutoff := in.TriggeredAt.Add(-in.MinInterval)
	if last, ok := s.triggers[key]; ok && last.After(cutoff) {
		return nil, &domain.ConcurrencyConflictError{RuleID: in.RuleID, EntityID: in.EntityID}
	}
	s.triggers[key] = in.TriggeredAt
	s.clockUpdates++

	ruleID := in.RuleID
	alert := &database.Alert{
		AlertID:        fmt.Sprintf("alert-%d", len(s.alerts)+1),
		RuleID:         &ruleID,
		OrganizationID: in.Alert.OrganizationID,
		EntityID:       in.EntityID,
		AlertType:      in.Alert.AlertType,
		Severity:       string(in.Alert.Severity),
		Title:          in.Alert.Title,
		Description:    in.Alert.Description,
		MetricValue:    in.Alert.MetricValue,
		ThresholdValue: in.Alert.ThresholdValue,
		Status:         string(domain.StatusUnread),
		TriggeredAt:    in.TriggeredAt,
	}
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *memStore) Recipients(context.Context, string) (map[domain.Channel][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipients, nil
}

func (s *memStore) UpdateDeliveryStatus(_ context.Context, alertID string, status map[string]database.ChannelDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivery[alertID] = status
	return nil
}

func (s *memStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// fakeSource returns a fixed value per entity.
type fakeSource struct {
	mu     sync.Mutex
	values map[string]*decimal.Decimal
	err    error
	panics bool
	calls  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{values: make(map[string]*decimal.Decimal)}
}

func (f *fakeSource) set(entityID, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value == "" {
		f.values[entityID] = nil
		return
	}
	v := decimal.RequireFromString(value)
	f.values[entityID] = &v
}

func (f *fakeSource) CurrentValue(_ context.Context, entityID, _ string) (*decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("source exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.values[entityID], nil
}

// recordingDispatcher records dispatch calls and reports every channel delivered.
type recordingDispatcher struct {
	mu       sync.Mutex
	calls    int
	channels []domain.Channel
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ *domain.Notification, channels []domain.Channel, _ map[domain.Channel][]string) dispatcher.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.channels = channels
	result := make(dispatcher.DispatchResult, len(channels))
	for _, ch := range channels {
		result[ch] = dispatcher.ChannelResult{Delivered: true, Attempts: 1}
	}
	return result
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.AlertTriggered
	err    error
}

func (p *fakePublisher) PublishAlertTriggered(_ context.Context, e *events.AlertTriggered) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

// mockNotificationSender is a channel sender with a fixed outcome.
type mockNotificationSender struct {
	channel domain.Channel
	err     error
}

func (m *mockNotificationSender) Send(context.Context, string, *domain.Notification) error {
	return m.err
}

func (m *mockNotificationSender) Type() domain.Channel { return m.channel }
