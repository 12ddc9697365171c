package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Memory interface.
// State lives only as long as the process; use it for tests and the
// "memory" storage provider.
type MemoryStore struct {
	mu     sync.RWMutex
	store  map[string]memoryEntry
	logger Logger
	now    func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store:  make(map[string]memoryEntry),
		logger: &NoOpLogger{},
		now:    time.Now,
	}
}

// SetLogger configures the logger for this memory store
func (m *MemoryStore) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetNow overrides the time source used for TTL expiry.
func (m *MemoryStore) SetNow(now func() time.Time) {
	if now != nil {
		m.mu.Lock()
		m.now = now
		m.mu.Unlock()
	}
}

func (m *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)
}

// Get retrieves a value from memory
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists {
		m.logger.Debug("Memory miss", map[string]interface{}{
			"operation": "memory_get",
			"key":       key,
			"result":    "miss",
		})
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}

	if m.expired(entry) {
		m.logger.Debug("Memory entry expired", map[string]interface{}{
			"operation":  "memory_get",
			"key":        key,
			"result":     "expired",
			"expired_at": entry.expiresAt.Format(time.RFC3339),
		})
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}

	m.logger.Debug("Memory hit", map[string]interface{}{
		"operation": "memory_get",
		"key":       key,
		"result":    "hit",
	})
	return entry.value, nil
}

// Set stores a value in memory with optional TTL
func (m *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logFields := map[string]interface{}{
		"operation":  "memory_set",
		"key":        key,
		"value_size": len(value),
		"has_ttl":    ttl > 0,
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
		logFields["expires_at"] = entry.expiresAt.Format(time.RFC3339)
	}
	m.logger.Debug("Memory set", logFields)

	m.store[key] = entry
	return nil
}

// Delete removes a value from memory
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.store[key]
	delete(m.store, key)

	m.logger.Debug("Memory delete", map[string]interface{}{
		"operation": "memory_delete",
		"key":       key,
		"existed":   existed,
	})
	return nil
}

// Exists checks if a key exists in memory
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists || m.expired(entry) {
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, entry := range m.store {
		if !m.expired(entry) {
			n++
		}
	}
	return n
}

// NamespacedMemory scopes every key of an underlying Memory under a prefix.
// Sessions use it to keep browser profiles apart on a shared backend.
type NamespacedMemory struct {
	inner  Memory
	prefix string
}

// Namespaced wraps mem so that every key becomes "<prefix>:<key>".
// An empty prefix returns mem unchanged.
func Namespaced(mem Memory, prefix string) Memory {
	if prefix == "" {
		return mem
	}
	return &NamespacedMemory{inner: mem, prefix: prefix}
}

func (n *NamespacedMemory) key(key string) string {
	return n.prefix + ":" + key
}

func (n *NamespacedMemory) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *NamespacedMemory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return n.inner.Set(ctx, n.key(key), value, ttl)
}

func (n *NamespacedMemory) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.key(key))
}

func (n *NamespacedMemory) Exists(ctx context.Context, key string) (bool, error) {
	return n.inner.Exists(ctx, n.key(key))
}

// HealthCheck always succeeds for the in-process store
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op; it lets MemoryStore satisfy StorageBackend.
func (m *MemoryStore) Close() error {
	return nil
}
