package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/sirupsen/logrus"
)

// RedisClient wraps the shared Redis connection used for advisory locks.
type RedisClient struct {
	*redis.Client
	logger *logrus.Logger
}

// NewRedisConnection connects to cfg.RedisURL.
// CRITICAL: Fails fast if Redis is unreachable
func NewRedisConnection(cfg *config.Config, logger *logrus.Logger) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Connecting to Redis...")
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("CRITICAL: failed to ping redis (fail-fast): %w", err)
	}

	logger.Info("Redis connection established")
	return &RedisClient{Client: client, logger: logger}, nil
}

// HealthCheck pings Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		r.logger.WithError(err).Error("Redis health check failed")
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisClient) Close() error {
	r.logger.Info("Closing Redis connection...")
	return r.Client.Close()
}
