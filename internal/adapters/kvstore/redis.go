package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed key-value store for shared deployments (several
// kiosk terminals serving the same storefront). Entries carry a Redis TTL
// slightly above the payment-session TTL so abandoned sessions clean
// themselves up.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis creates a Redis store. ttl bounds how long entries live
// server-side regardless of application-level expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Get returns the value for key and whether it was present
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key with the configured TTL
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

// Remove deletes key; removing an absent key is not an error
func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
