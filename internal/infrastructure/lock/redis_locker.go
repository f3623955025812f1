// Package lock provides the distributed locks that serialize allocation work
// per customer or supplier across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/arap/internal/domain/shared"
)

// RedisLocker implements shared.Locker on top of redislock.
type RedisLocker struct {
	client        *redislock.Client
	retryInterval time.Duration
	retryCount    int
	logger        *zap.Logger
}

// Option configures a RedisLocker
type Option func(*RedisLocker)

// WithRetry makes Acquire retry up to count times, interval apart, before giving up
func WithRetry(interval time.Duration, count int) Option {
	return func(l *RedisLocker) {
		l.retryInterval = interval
		l.retryCount = count
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a locker over an existing Redis client
func NewRedisLocker(client *redis.Client, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: redislock.New(client),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains key for ttl. When the lock stays taken after the configured
// retries it returns shared.ErrLockNotObtained.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	var strategy redislock.RetryStrategy = redislock.NoRetry()
	if l.retryCount > 0 && l.retryInterval > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(l.retryInterval), l.retryCount)
	}

	lk, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: strategy})
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Warn("lock busy", zap.String("key", key))
		return nil, shared.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	l.logger.Debug("lock obtained", zap.String("key", key), zap.Duration("ttl", ttl))

	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("lock expired before release", zap.String("key", key))
			return nil
		}
		return err
	}, nil
}

var _ shared.Locker = (*RedisLocker)(nil)
