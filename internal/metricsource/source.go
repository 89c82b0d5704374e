// Package metricsource reads current metric values produced by the
// document-analysis pipeline.
package metricsource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finsightx/alert-engine/internal/domain"
)

// Source returns the current value of a metric for an entity.
// A nil value with a nil error means no value is available; callers must
// never treat that as zero.
type Source interface {
	CurrentValue(ctx context.Context, entityID, metricType string) (*decimal.Decimal, error)
}

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads the latest sample from the analysis store's metric_samples table.
type PostgresSource struct {
	db rowQuerier
	// maxAge discards samples older than this. Zero accepts any age.
	maxAge time.Duration
	now    func() time.Time
}

// NewPostgresSource creates a source over an existing pool.
func NewPostgresSource(db rowQuerier, maxAge time.Duration) *PostgresSource {
	return &PostgresSource{db: db, maxAge: maxAge, now: time.Now}
}

// OpenPool connects to the analysis store.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect metrics database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping metrics database: %w", err)
	}
	return pool, nil
}

const latestSampleQuery = `
	SELECT value::text, observed_at
	FROM metric_samples
	WHERE entity_id = $1 AND metric_type = $2
	ORDER BY observed_at DESC
	LIMIT 1
`

// CurrentValue implements Source.
func (s *PostgresSource) CurrentValue(ctx context.Context, entityID, metricType string) (*decimal.Decimal, error) {
	var (
		raw        string
		observedAt time.Time
	)
	err := s.db.QueryRow(ctx, latestSampleQuery, entityID, metricType).Scan(&raw, &observedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.MetricUnavailableError{EntityID: entityID, MetricType: metricType, Err: err}
	}

	if s.maxAge > 0 && s.now().Sub(observedAt) > s.maxAge {
		return nil, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &domain.MetricUnavailableError{
			EntityID:   entityID,
			MetricType: metricType,
			Err:        fmt.Errorf("failed to parse sample value %q: %w", raw, err),
		}
	}
	return &value, nil
}
