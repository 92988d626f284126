package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Storage = (*RedisStorage)(nil)

// RedisStorage keeps values in redis, optionally under a key prefix and with
// a TTL refreshed on every write.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisStorageOption configures a RedisStorage instance.
type RedisStorageOption func(*RedisStorage)

func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(r *RedisStorage) {
		r.prefix = prefix
	}
}

// WithTTL expires keys that have not been written for ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisStorageOption {
	return func(r *RedisStorage) {
		r.ttl = ttl
	}
}

func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) *RedisStorage {
	r := &RedisStorage{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
