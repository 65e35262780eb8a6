// Package redis connects the shared Redis instance used for gateway token caching.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/logger"
	"github.com/redis/go-redis/v9"
)

const (
	connectRetries    = 5
	connectRetryDelay = time.Second
)

// NewClient creates a new Redis client and waits until it answers a ping
func NewClient(ctx context.Context, cfg *config.AppConfig) (*redis.Client, error) {
	return connect(ctx, &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}, connectRetries, connectRetryDelay)
}

func connect(ctx context.Context, opts *redis.Options, maxRetries int, retryDelay time.Duration) (*redis.Client, error) {
	client := redis.NewClient(opts)

	for i := 0; i < maxRetries; i++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info("Connected to Redis", logger.LogContext{
				Fields: map[string]any{"addr": opts.Addr, "db": opts.DB},
			})
			return client, nil
		}

		if i == maxRetries-1 {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis after %d retries: %w", maxRetries, err)
		}

		logger.Warn("Redis not reachable, retrying", logger.LogContext{
			Fields: map[string]any{"addr": opts.Addr, "attempt": i + 1, "error": err.Error()},
		})

		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * retryDelay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis: no attempts made")
}
