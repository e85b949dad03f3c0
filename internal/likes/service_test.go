package likes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/shared/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	albums   map[string]bool
	likes    map[string]map[string]bool
	countErr error
	reads    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		albums: map[string]bool{},
		likes:  map[string]map[string]bool{},
	}
}

func (f *fakeStore) seed(albumID string, n int) {
	f.albums[albumID] = true
	f.likes[albumID] = map[string]bool{}
	for i := 0; i < n; i++ {
		f.likes[albumID][string(rune('a'+i))] = true
	}
}

func (f *fakeStore) AlbumExists(_ context.Context, albumID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.albums[albumID], nil
}

func (f *fakeStore) CountAlbumLikes(_ context.Context, albumID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.likes[albumID]), nil
}

func (f *fakeStore) AddLike(_ context.Context, userID, albumID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likes[albumID] == nil {
		f.likes[albumID] = map[string]bool{}
	}
	if f.likes[albumID][userID] {
		return domain.ErrAlreadyLiked
	}
	f.likes[albumID][userID] = true
	return nil
}

func (f *fakeStore) RemoveLike(_ context.Context, userID, albumID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.likes[albumID], userID)
	return nil
}

func newTestService(t *testing.T, store Store) (*Service, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cache.NewCache("likes", client), store, 30*time.Minute, logger), srv
}

func TestService_GetLikes_MissPopulatesCache(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 15)
	svc, srv := newTestService(t, store)

	count, source, err := svc.GetLikes(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 15, count)
	assert.Equal(t, SourceDatabase, source)

	raw, err := srv.Get("likes:7")
	require.NoError(t, err)
	assert.Equal(t, "15", raw)
	assert.Equal(t, 30*time.Minute, srv.TTL("likes:7"))
}

func TestService_GetLikes_HitSkipsStore(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 15)
	svc, srv := newTestService(t, store)
	require.NoError(t, srv.Set("likes:7", "99"))

	count, source, err := svc.GetLikes(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 99, count)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, 0, store.reads)
}

func TestService_GetLikes_CorruptEntryFallsBack(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 2)
	svc, srv := newTestService(t, store)
	require.NoError(t, srv.Set("likes:7", "NaN"))

	count, source, err := svc.GetLikes(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, SourceDatabase, source)
}

func TestService_GetLikes_CacheDown(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 15)
	svc, srv := newTestService(t, store)
	srv.Close()

	count, source, err := svc.GetLikes(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 15, count)
	assert.Equal(t, SourceDatabase, source)
}

func TestService_GetLikes_StoreError(t *testing.T) {
	store := newFakeStore()
	store.countErr = errors.New("db down")
	svc, _ := newTestService(t, store)

	_, _, err := svc.GetLikes(context.Background(), "7")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestService_LikeInvalidates(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 15)
	svc, srv := newTestService(t, store)
	ctx := context.Background()

	_, _, err := svc.GetLikes(ctx, "7")
	require.NoError(t, err)
	require.True(t, srv.Exists("likes:7"))

	require.NoError(t, svc.Like(ctx, "user-new", "7"))
	assert.False(t, srv.Exists("likes:7"))

	count, source, err := svc.GetLikes(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 16, count)
	assert.Equal(t, SourceDatabase, source)

	require.NoError(t, svc.Unlike(ctx, "user-new", "7"))
	require.NoError(t, svc.Unlike(ctx, "user-new", "7"))
	count, _, err = svc.GetLikes(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 15, count)
}

func TestService_Like_Errors(t *testing.T) {
	store := newFakeStore()
	store.seed("7", 0)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Like(ctx, "user-1", "missing"), domain.ErrAlbumNotFound)

	require.NoError(t, svc.Like(ctx, "user-1", "7"))
	assert.ErrorIs(t, svc.Like(ctx, "user-1", "7"), domain.ErrAlreadyLiked)
}

func TestService_Invalidate_CacheDown(t *testing.T) {
	svc, srv := newTestService(t, newFakeStore())
	srv.Close()

	assert.NotPanics(t, func() { svc.Invalidate(context.Background(), "7") })
}
