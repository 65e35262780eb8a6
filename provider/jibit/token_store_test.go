package jibit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryTokenStore()
	store.now = func() time.Time { return now }

	_, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "key", "token-1", time.Hour))

	token, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-1", token)

	now = now.Add(59 * time.Minute)
	_, ok, _ = store.Get(ctx, "key")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "key")
	assert.False(t, ok, "expired token must not be served")
	assert.Equal(t, 0, store.Len())
}

func TestMemoryTokenStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryTokenStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", "a", time.Minute))
	require.NoError(t, store.Set(ctx, "long", "b", time.Hour))
	assert.Equal(t, 2, store.Len())

	now = now.Add(10 * time.Minute)
	store.Cleanup()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryTokenStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	require.NoError(t, store.Set(ctx, "key", "fresh", time.Hour))

	require.NoError(t, store.Delete(ctx, "key", "stale"))
	token, ok, _ := store.Get(ctx, "key")
	assert.True(t, ok, "a different token must survive")
	assert.Equal(t, "fresh", token)

	require.NoError(t, store.Delete(ctx, "key", "fresh"))
	_, ok, _ = store.Get(ctx, "key")
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "missing", "any"))
}

func TestMemoryTokenStore_InvalidTTL(t *testing.T) {
	store := NewMemoryTokenStore()
	assert.Error(t, store.Set(context.Background(), "key", "token", 0))
}

func TestRedisTokenStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisTokenStore(client)
	key := "test-" + time.Now().Format("150405.000000")

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, "token-1", 2*time.Second))

	token, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-1", token)

	ttl, err := client.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, key, "token-0"))
	_, ok, _ = store.Get(ctx, key)
	assert.True(t, ok, "delete with another token keeps the entry")

	require.NoError(t, store.Delete(ctx, key, "token-1"))
	_, ok, _ = store.Get(ctx, key)
	assert.False(t, ok)

	client.Del(ctx, redisKeyPrefix+key)
}
