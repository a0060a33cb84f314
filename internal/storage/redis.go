package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps deadlines as unix-millisecond strings with a Redis expiry.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("storage: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Load reads a deadline. A missing key maps to ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: load %s: %w", key, err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return time.UnixMilli(ms), nil
}

// Save writes the deadline with SET PX so Redis drops it after ttl.
func (s *RedisStore) Save(ctx context.Context, key string, deadline time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, strconv.FormatInt(deadline.UnixMilli(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}
