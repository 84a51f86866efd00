package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis returns a Store persisting to a single redis key.  Multiple
// kiosk terminals pointed at the same key share one authoritative
// selection record instead of diverging per-terminal copies.  The key
// carries a TTL mirroring the record's expiry so an abandoned
// selection disappears from redis on its own.
func NewRedis(client *redis.Client, key string, hold time.Duration) *Store {
	return newStore(&redisBackend{client: client, key: key}, hold)
}

type redisBackend struct {
	client *redis.Client
	key    string
}

const redisTimeout = 2 * time.Second

func (r *redisBackend) Read() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *redisBackend) Write(data []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *redisBackend) Delete() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return r.client.Del(ctx, r.key).Err()
}
