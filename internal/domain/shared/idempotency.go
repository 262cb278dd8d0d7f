package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a receipt or issue key stays claimed
// when no TTL is configured.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore holds claimed request keys. A ledger POST claims its key
// before booking and releases it when booking fails, so a replayed receipt
// or issue never moves stock twice.
type IdempotencyStore interface {
	// Reserve returns false when the key is already claimed
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}
