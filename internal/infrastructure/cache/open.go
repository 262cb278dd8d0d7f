// Package cache holds the idempotency key stores used by the HTTP layer.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
)

type storeOptions struct {
	log      *zap.Logger
	fallback bool
}

type Option func(*storeOptions)

func WithLogger(log *zap.Logger) Option {
	return func(o *storeOptions) { o.log = log }
}

// WithInMemoryFallback lets an unreachable Redis degrade to a per-process
// store. On by default; production turns it off.
func WithInMemoryFallback(allow bool) Option {
	return func(o *storeOptions) { o.fallback = allow }
}

// OpenIdempotencyStore returns the Redis store when Redis is enabled and
// answers a ping, and the in-memory store otherwise.
func OpenIdempotencyStore(ctx context.Context, cfg config.RedisConfig, opts ...Option) (shared.IdempotencyStore, error) {
	o := storeOptions{log: zap.NewNop(), fallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.log.Info("Redis disabled, idempotency keys kept in memory")
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := dialRedis(ctx, cfg)
	switch {
	case err == nil:
		o.log.Info("Idempotency keys kept in Redis", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
		return NewRedisIdempotencyStore(client, ""), nil
	case !o.fallback:
		return nil, fmt.Errorf("idempotency store: %w", err)
	}

	// retries landing on another replica go undetected until Redis is back
	o.log.Warn("Redis unreachable, idempotency keys kept in memory", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}

func dialRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
