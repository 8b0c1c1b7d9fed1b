package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache represents a Redis-backed distributed cache
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds the configuration for the Redis cache
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces every key written by this cache
	Prefix string
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(ctx context.Context, config RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client, config.Prefix), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

// Get retrieves a value from the cache
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	} else if err != nil {
		return err
	}

	return json.Unmarshal(val, dest)
}

// Set stores a value in the cache with optional expiration
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key(key), data, expiration).Err()
}

// Take atomically reads and deletes a value
func (r *RedisCache) Take(ctx context.Context, key string, dest interface{}) error {
	val, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	} else if err != nil {
		return err
	}

	return json.Unmarshal(val, dest)
}

// Delete removes a value from the cache
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Exists checks if a key exists in the cache
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	res, err := r.client.Exists(ctx, r.key(key)).Result()
	return res > 0, err
}

// Close closes the Redis client connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
