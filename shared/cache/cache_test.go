package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache("likes", client), srv
}

func TestCache_SetGet(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "album-7", "15", 30*time.Minute))

	val, err := c.Get(ctx, "album-7")
	require.NoError(t, err)
	assert.Equal(t, "15", val)

	// stored under the namespaced key with a TTL
	raw, err := srv.Get("likes:album-7")
	require.NoError(t, err)
	assert.Equal(t, "15", raw)
	assert.Equal(t, 30*time.Minute, srv.TTL("likes:album-7"))
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "album-404")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "album-1", "3", time.Minute))
	srv.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "album-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "album-2", "8", time.Minute))
	require.NoError(t, c.Delete(ctx, "album-2"))
	assert.False(t, srv.Exists("likes:album-2"))

	// deleting again is fine
	require.NoError(t, c.Delete(ctx, "album-2"))
}

func TestCache_Unavailable(t *testing.T) {
	c, srv := newTestCache(t)
	srv.Close()

	_, err := c.Get(context.Background(), "album-3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
