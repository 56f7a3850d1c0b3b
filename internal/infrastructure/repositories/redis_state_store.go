package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/you/findmyseat/domain"
)

// RedisStateStore implements domain.StateStore using Redis
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore creates a new Redis-backed state store. Keys are written
// without TTL: expiry of the OTP deadline is decided by the client, not by Redis.
func NewRedisStateStore(client *redis.Client, prefix string) domain.StateStore {
	return &RedisStateStore{
		client: client,
		prefix: prefix,
	}
}

// Get implements domain.StateStore
func (r *RedisStateStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return val, nil
}

// Set implements domain.StateStore
func (r *RedisStateStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s in Redis: %w", key, err)
	}
	return nil
}

// Delete implements domain.StateStore
func (r *RedisStateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys from Redis: %w", err)
	}
	return nil
}
