package core

import (
	"context"
	"fmt"
)

// StorageBackend is a Memory that owns a connection or file handle.
type StorageBackend interface {
	Memory
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewMemory builds the storage backend selected by cfg.Provider.
//
// The Redis backend prefixes every key with cfg.Namespace so several
// deployments can share a server. The memory and sqlite backends are
// private to the process and ignore the namespace.
func NewMemory(cfg StorageConfig, logger Logger) (StorageBackend, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}

	switch cfg.Provider {
	case "", StorageProviderMemory:
		store := NewMemoryStore()
		store.SetLogger(logger)
		return store, nil
	case StorageProviderRedis:
		client, err := NewRedisClient(RedisClientOptions{
			RedisURL:     cfg.RedisURL,
			DB:           cfg.RedisDB,
			Namespace:    cfg.Namespace,
			Logger:       logger,
			ConnectRetry: DefaultRetryConfig(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case StorageProviderSQLite:
		mem, err := OpenSQLiteMemory(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return mem, nil
	default:
		return nil, &StoreError{
			Op:      "NewMemory",
			Kind:    "config",
			Message: fmt.Sprintf("unknown storage provider: %q", cfg.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}
}
