package cache

import (
	"context"
	"sync"
	"time"
)

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache implements Cache interface with in-memory storage.
// Uses lazy expiration (checks expiry on Get).
// Suitable for single-instance deployments.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[T]
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
	}
}

// Get retrieves a value from cache.
func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in cache with TTL.
func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a key from cache.
func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Close cleans up resources.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]cacheItem[T])
	return nil
}

// Health checks if the cache is healthy (always true for memory cache).
func (m *MemoryCache[T]) Health(ctx context.Context) error {
	return nil
}

type counterItem struct {
	count     int64
	expiresAt time.Time
}

// Compile-time interface check.
var _ Counter = (*MemoryCounter)(nil)

// MemoryCounter implements Counter with in-process storage. Only suitable
// for single-instance deployments; multi-instance setups need the Redis
// counter so failure counts are shared.
type MemoryCounter struct {
	mu    sync.Mutex
	items map[string]counterItem
}

// NewMemoryCounter creates a new memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{items: make(map[string]counterItem)}
}

// Incr increments key, starting a fresh window when the key is new or the
// previous window elapsed.
func (m *MemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	item, exists := m.items[key]
	if !exists || now.After(item.expiresAt) {
		item = counterItem{count: 0, expiresAt: now.Add(window)}
	}
	item.count++
	m.items[key] = item
	return item.count, nil
}

// Get returns the current count, or 0 when absent/expired.
func (m *MemoryCounter) Get(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		return 0, nil
	}
	return item.count, nil
}

// Reset removes the counter.
func (m *MemoryCounter) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}
