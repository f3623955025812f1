package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so that a retried mutation
// (for example a manual allocation resubmitted by a client) runs once.
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly recorded, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is recorded and not yet expired.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget drops key, used when the guarded operation failed and may be retried.
	Forget(ctx context.Context, key string) error

	Close() error
}
