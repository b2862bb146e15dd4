// models.go -- Shared domain types for the store package.
// Used by both Postgres (decision audit) and Redis (integration cache).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrCacheMiss is returned by GetIntegration when the key is not in Redis.
// Callers use errors.Is to distinguish a true miss from a Redis infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheDisabled is returned by NoopIntegrationCache when Redis is not configured.
var ErrCacheDisabled = errors.New("cache disabled")

// AdmissionEvent represents a row in the admission_events table.
// One row per non-pass-through decision made by the gate.
// IPAddress and UserAgent are nil when the request carried none.
type AdmissionEvent struct {
	ID           uuid.UUID
	EventID      string
	QueueID      string
	ActionType   string
	ActionName   string
	Outcome      string
	RedirectType string
	ErrorCode    string
	IPAddress    *string
	UserAgent    *string
	CreatedAt    time.Time
}

// Auditor records admission decisions. Implemented by PostgresStore and NopAuditor.
type Auditor interface {
	RecordDecision(ctx context.Context, ev AdmissionEvent) error
}

// NopAuditor discards every decision. Used when DATABASE_URL is unset.
type NopAuditor struct{}

// RecordDecision does nothing.
func (NopAuditor) RecordDecision(context.Context, AdmissionEvent) error { return nil }

// IntegrationCache holds raw integration documents keyed by customer.
// Implemented by RedisStore and NoopIntegrationCache.
type IntegrationCache interface {
	GetIntegration(ctx context.Context, customerID string) ([]byte, error)
	SetIntegration(ctx context.Context, customerID string, raw []byte, ttl time.Duration) error
}

// NoopIntegrationCache always misses. Used when REDIS_URL is unset.
type NoopIntegrationCache struct{}

// GetIntegration always returns ErrCacheDisabled.
func (NoopIntegrationCache) GetIntegration(context.Context, string) ([]byte, error) {
	return nil, ErrCacheDisabled
}

// SetIntegration does nothing.
func (NoopIntegrationCache) SetIntegration(context.Context, string, []byte, time.Duration) error {
	return nil
}
