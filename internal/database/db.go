// Package database provides the Postgres-backed rule store and alert store.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/finsightx/alert-engine/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a database connection and provides rule, endpoint, scope and alert operations.
type DB struct {
	conn *sql.DB
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// ApplySchema creates the alert engine tables if they do not exist.
func (db *DB) ApplySchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// mapWriteError translates pq constraint violations into domain errors.
func mapWriteError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: referenced scope %w", what, domain.ErrNotFound)
		case "23514": // check_violation
			return &domain.ValidationError{Message: fmt.Sprintf("%s rejected by constraint %s", what, pqErr.Constraint)}
		}
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// unmarshalDeliveryStatus deserializes the delivery_status JSONB column.
func unmarshalDeliveryStatus(raw sql.NullString, warnAttrs ...any) map[string]ChannelDelivery {
	if !raw.Valid || raw.String == "" {
		return nil
	}

	var status map[string]ChannelDelivery
	if err := json.Unmarshal([]byte(raw.String), &status); err != nil {
		slog.Warn("Failed to unmarshal delivery status JSON", append([]any{"error", err}, warnAttrs...)...)
		return nil
	}
	return status
}

// clampPagination keeps list queries bounded.
func clampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
