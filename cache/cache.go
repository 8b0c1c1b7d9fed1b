// Package cache stores short-lived values such as OAuth login state.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the cache
var ErrKeyNotFound = errors.New("key not found in cache")

// Cache defines the interface for cache operations
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in the cache with optional expiration
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Take retrieves a value and removes it in one step, so a value can be
	// consumed at most once
	Take(ctx context.Context, key string, dest interface{}) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close closes the cache connection
	Close() error
}
