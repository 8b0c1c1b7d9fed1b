package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Cache for single-instance deployments.
// Values are stored JSON-encoded so Get behaves like the Redis cache.
type MemoryCache struct {
	store *gocache.Cache
	// serializes Take so a value is handed out once
	mu sync.Mutex
}

// NewMemoryCache creates a cache whose expired entries are purged every
// cleanupInterval
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := m.store.Get(key)
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Set stores a value in the cache. A zero expiration uses the default.
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	m.store.Set(key, data, expiration)
	return nil
}

// Take reads and removes a value
func (m *MemoryCache) Take(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	v, ok := m.store.Get(key)
	if ok {
		m.store.Delete(key)
	}
	m.mu.Unlock()

	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Exists checks if a key exists in the cache
func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.store.Get(key)
	return ok, nil
}

// Close drops every entry
func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}
