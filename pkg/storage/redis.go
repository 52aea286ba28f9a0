package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/redis/go-redis/v9"
)

const redisHashKey = "solarbot:messages"

// RedisStore implements Store with one redis hash.
type RedisStore struct {
	client *redis.Client
	url    string
}

func configuredRedis() *RedisStore {
	u := lflag.String("redis-url", "redis://localhost:6379/0", "Redis URL used by the redis storage provider")

	r := &RedisStore{}
	lflag.Do(func() {
		r.url = *u
	})
	return r
}

// NewRedisStore returns a store using an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Init connects to redis and verifies the connection.
func (r *RedisStore) Init(ctx context.Context) error {
	opts, err := redis.ParseURL(r.url)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	r.client = redis.NewClient(opts)
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Get returns the hash field named key, or an empty string when unset.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.HGet(ctx, redisHashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return v, nil
}

// Set stores key in the hash.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, redisHashKey, key, value).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
