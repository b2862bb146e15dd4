// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and decision audit queries.
// Creates a connection pool at startup, shared across all requests.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable decision audit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates and returns a verified connection pool
// to PostgreSQL wrapped in a store.
// Call once at startup from main.go...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	// Create a pool w/ database url, return if err
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	// Ping db to make sure connection works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres. Used by the health endpoint.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordDecision inserts one admission decision.
// A zero ID gets a fresh UUID v7, a zero CreatedAt gets now.
func (s *PostgresStore) RecordDecision(ctx context.Context, ev AdmissionEvent) error {
	if ev.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating event id: %w", err)
		}
		ev.ID = id
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO admission_events
			(id, event_id, queue_id, action_type, action_name, outcome,
			 redirect_type, error_code, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.EventID, ev.QueueID, ev.ActionType, ev.ActionName, ev.Outcome,
		ev.RedirectType, ev.ErrorCode, ev.IPAddress, ev.UserAgent, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	return nil
}

// CountDecisions returns how many decisions were recorded for eventID since the given time.
func (s *PostgresStore) CountDecisions(ctx context.Context, eventID string, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM admission_events WHERE event_id = $1 AND created_at >= $2",
		eventID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting decisions: %w", err)
	}
	return n, nil
}

// CleanupDecisions deletes decisions older than retention. Returns rows removed.
func (s *PostgresStore) CleanupDecisions(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM admission_events WHERE created_at < $1",
		time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleaning up decisions: %w", err)
	}
	return tag.RowsAffected(), nil
}
