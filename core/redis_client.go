// Package core provides the shared contracts, configuration and storage
// backends of the storefront.
//
// This file implements the Redis storage backend. Every store writes its
// JSON blob under a namespaced key:
//
//	<namespace>:<profile>:<storage key>
//	storefront:default:luxe_commerce_cart
//
// Usage:
//
//	client, err := NewRedisClient(RedisClientOptions{
//	    RedisURL:  "redis://localhost:6379",
//	    DB:        RedisDBStorefront,
//	    Namespace: "storefront",
//	})
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Standard Redis DB allocation
const (
	// RedisDBStorefront holds the persisted store blobs (default)
	RedisDBStorefront = 0

	// RedisDBTesting is used by integration tests against a real server
	RedisDBTesting = 15
)

// RedisClient implements Memory on top of go-redis with DB isolation and
// key namespacing.
type RedisClient struct {
	client    *redis.Client
	dbID      int
	namespace string
	logger    Logger
}

// RedisClientOptions configures the Redis client
type RedisClientOptions struct {
	RedisURL  string
	DB        int    // Redis DB number for isolation (0-15), negative keeps the URL's DB
	Namespace string // Key namespace for organization
	Logger    Logger // Optional logger
	// ConnectRetry retries the initial ping; nil pings once
	ConnectRetry *RetryConfig
}

// NewRedisClient creates a new Redis client with specified options and
// verifies connectivity with a ping.
func NewRedisClient(opts RedisClientOptions) (*RedisClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	logger.Debug("Initializing Redis client", map[string]interface{}{
		"db":        opts.DB,
		"namespace": opts.Namespace,
	})

	if opts.RedisURL == "" {
		logger.Error("Failed to initialize Redis client", map[string]interface{}{
			"error":      "Redis URL is required",
			"error_type": "ErrMissingConfiguration",
		})
		return nil, fmt.Errorf("redis URL is required: %w", ErrMissingConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	// Override DB for isolation
	if opts.DB >= 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	client := redis.NewClient(redisOpt)

	retry := opts.ConnectRetry
	if retry == nil {
		retry = &RetryConfig{MaxAttempts: 1}
	}
	err = Retry(context.Background(), retry, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	})
	if err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
			"db":         redisOpt.DB,
			"namespace":  opts.Namespace,
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", redisOpt.DB, ErrConnectionFailed)
	}

	rc := &RedisClient{
		client:    client,
		dbID:      redisOpt.DB,
		namespace: opts.Namespace,
		logger:    logger,
	}

	logger.Info("Redis client connected", map[string]interface{}{
		"db":        rc.dbID,
		"namespace": rc.namespace,
	})

	return rc, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	r.logger.Info("Closing Redis client connection", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})

	err := r.client.Close()
	if err != nil {
		r.logger.Error("Failed to close Redis client", map[string]interface{}{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
			"namespace":  r.namespace,
		})
	}
	return err
}

// GetDB returns the DB number being used
func (r *RedisClient) GetDB() int {
	return r.dbID
}

// GetNamespace returns the namespace being used
func (r *RedisClient) GetNamespace() string {
	return r.namespace
}

// formatKey formats a key with the namespace
func (r *RedisClient) formatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

// Get retrieves a value
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.formatKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorWithContext(ctx, "Redis get failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return "", fmt.Errorf("redis get %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return value, nil
}

// Set stores a value with optional TTL
func (r *RedisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.formatKey(key), value, ttl).Err(); err != nil {
		r.logger.ErrorWithContext(ctx, "Redis set failed", map[string]interface{}{
			"key":        key,
			"value_size": len(value),
			"error":      err.Error(),
		})
		return fmt.Errorf("redis set %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return nil
}

// Delete removes a key
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.formatKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return nil
}

// Exists checks if a key exists
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %v: %w", key, err, ErrStorageUnavailable)
	}
	return n > 0, nil
}

// TTL gets the remaining TTL of a key
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, r.formatKey(key)).Result()
}

// HealthCheck verifies Redis connectivity
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		r.logger.ErrorWithContext(ctx, "Redis health check failed", map[string]interface{}{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
			"namespace":  r.namespace,
		})
		return fmt.Errorf("redis ping: %v: %w", err, ErrConnectionFailed)
	}

	r.logger.DebugWithContext(ctx, "Redis health check passed", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})
	return nil
}
