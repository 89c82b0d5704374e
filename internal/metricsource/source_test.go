package metricsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/domain"
)

type fakeRow struct {
	value      string
	observedAt time.Time
	err        error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	*dest[1].(*time.Time) = r.observedAt
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	calls int
	args  []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.calls++
	q.args = args
	return q.row
}

func TestPostgresSource_CurrentValue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		row         fakeRow
		maxAge      time.Duration
		want        string
		wantNil     bool
		wantUnavail bool
	}{
		{name: "latest sample", row: fakeRow{value: "72.5", observedAt: now.Add(-time.Minute)}, want: "72.5"},
		{name: "no sample", row: fakeRow{err: pgx.ErrNoRows}, wantNil: true},
		{name: "query failure", row: fakeRow{err: errors.New("connection refused")}, wantUnavail: true},
		{name: "unparseable value", row: fakeRow{value: "NaN?", observedAt: now}, wantUnavail: true},
		{name: "stale sample", row: fakeRow{value: "10", observedAt: now.Add(-2 * time.Hour)}, maxAge: time.Hour, wantNil: true},
		{name: "fresh enough", row: fakeRow{value: "10", observedAt: now.Add(-30 * time.Minute)}, maxAge: time.Hour, want: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{row: tt.row}
			src := NewPostgresSource(q, tt.maxAge)
			src.now = func() time.Time { return now }

			got, err := src.CurrentValue(context.Background(), "company-1", "risk_score")
			if tt.wantUnavail {
				var merr *domain.MetricUnavailableError
				if !errors.As(err, &merr) {
					t.Fatalf("CurrentValue() error = %v, want MetricUnavailableError", err)
				}
				if merr.EntityID != "company-1" || merr.MetricType != "risk_score" {
					t.Errorf("MetricUnavailableError = %+v", merr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CurrentValue() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("CurrentValue() = %v, want nil", got)
				}
				return
			}
			if got == nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("CurrentValue() = %v, want %s", got, tt.want)
			}
			if q.args[0] != "company-1" || q.args[1] != "risk_score" {
				t.Errorf("query args = %v", q.args)
			}
		})
	}
}

type fakeCache struct {
	data    map[string]string
	getErr  error
	setErr  error
	setTTLs []time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if c.setErr != nil {
		return redis.NewStatusResult("", c.setErr)
	}
	c.data[key] = value.(string)
	c.setTTLs = append(c.setTTLs, ttl)
	return redis.NewStatusResult("OK", nil)
}

type stubSource struct {
	value *decimal.Decimal
	err   error
	calls int
}

func (s *stubSource) CurrentValue(context.Context, string, string) (*decimal.Decimal, error) {
	s.calls++
	return s.value, s.err
}

func TestCachedSource_ReadThrough(t *testing.T) {
	v := decimal.RequireFromString("1.75")
	inner := &stubSource{value: &v}
	c := newFakeCache()
	src := NewCachedSource(inner, c, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := src.CurrentValue(ctx, "company-1", "debt_to_equity")
		if err != nil || got == nil || !got.Equal(v) {
			t.Fatalf("CurrentValue() = %v, %v", got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if len(c.setTTLs) != 1 || c.setTTLs[0] != DefaultCacheTTL {
		t.Errorf("cache TTLs = %v, want [%v]", c.setTTLs, DefaultCacheTTL)
	}
}

func TestCachedSource_CachesMissingValue(t *testing.T) {
	inner := &stubSource{}
	src := NewCachedSource(inner, newFakeCache(), time.Second)

	for i := 0; i < 2; i++ {
		got, err := src.CurrentValue(context.Background(), "company-1", "fraud_detected")
		if err != nil || got != nil {
			t.Fatalf("CurrentValue() = %v, %v; want nil, nil", got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	inner := &stubSource{err: errors.New("db down")}
	c := newFakeCache()
	src := NewCachedSource(inner, c, time.Second)

	for i := 0; i < 2; i++ {
		if _, err := src.CurrentValue(context.Background(), "company-1", "risk_score"); err == nil {
			t.Fatal("CurrentValue() expected error")
		}
	}
	if inner.calls != 2 || len(c.data) != 0 {
		t.Errorf("inner calls = %d, cached = %v", inner.calls, c.data)
	}
}

func TestCachedSource_CacheOutageFallsThrough(t *testing.T) {
	v := decimal.NewFromInt(5)
	inner := &stubSource{value: &v}
	c := newFakeCache()
	c.getErr = errors.New("redis unavailable")
	c.setErr = errors.New("redis unavailable")
	src := NewCachedSource(inner, c, time.Second)

	got, err := src.CurrentValue(context.Background(), "company-1", "compliance_issue")
	if err != nil || got == nil || !got.Equal(v) {
		t.Errorf("CurrentValue() = %v, %v", got, err)
	}
}
