package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/storefront-orders/pkg/logger"
)

func TestRedisStoreLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Hour, logger.NewNopLogger())
	ctx := context.Background()

	sess, err := store.Create(ctx, "7")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, mr.Exists(keyPrefix+sess.Token))

	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	require.NoError(t, store.Delete(ctx, sess.Token))
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Minute, logger.NewNopLogger())
	ctx := context.Background()

	sess, err := store.Create(ctx, "7")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreUnknownToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err := NewRedisStore(rdb, time.Minute, logger.NewNopLogger()).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Hour, func() time.Time { return now })
	ctx := context.Background()

	sess, err := store.Create(ctx, "3")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = store.Get(ctx, sess.Token)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()

	sess, err := store.Create(ctx, "3")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, sess.Token))

	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}
