package storage

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	r := &RedisStore{url: addr}
	require.NoError(t, r.Init(ctx))
	defer r.Close()
	require.NoError(t, r.client.Del(ctx, redisHashKey).Err())

	v, err := r.Get(ctx, "MESSAGE_ID")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, r.Set(ctx, "MESSAGE_ID", "444"))
	v, err = r.Get(ctx, "MESSAGE_ID")
	require.NoError(t, err)
	assert.Equal(t, "444", v)
}

func TestRedisStoreUnreachable(t *testing.T) {
	r := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}))
	defer r.Close()

	_, err := r.Get(context.Background(), "MESSAGE_ID")
	assert.Error(t, err)
	assert.Error(t, r.Set(context.Background(), "MESSAGE_ID", "1"))
}
