package cache

import (
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyPrefix namespaces request keys in a shared Redis
	IdempotencyKeyPrefix = "arap:idem:"

	inMemorySweepInterval = 5 * time.Minute
)

// NewIdempotencyStore picks the store named by cfg.IdempotencyBackend.
// The redis backend needs a connected client.
func NewIdempotencyStore(cfg config.AllocationConfig, client *redis.Client, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.IdempotencyBackend {
	case "", "memory":
		logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(inMemorySweepInterval), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("idempotency backend %q needs a Redis client", cfg.IdempotencyBackend)
		}
		logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, IdempotencyKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.IdempotencyBackend)
	}
}
