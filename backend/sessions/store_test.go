package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := NewStore(rdb, 30*time.Minute)
	store.nowF = func() time.Time { return now }
	return store, mr, &now
}

func TestCreateAndGet(t *testing.T) {
	store, mr, now := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Len(t, sess.Key, 64)
	assert.NotEmpty(t, sess.UserID)
	assert.Equal(t, now.Add(30*time.Minute), sess.ExpiresAt)
	assert.Equal(t, 30*time.Minute, mr.TTL(keyPrefix+sess.Key))

	got, err := store.Get(ctx, sess.Key)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
}

func TestGetUnknownIsUnauthenticated(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperr.Unauthenticated))

	_, err = store.Get(context.Background(), "")
	assert.True(t, errors.Is(err, apperr.Unauthenticated))
}

func TestSessionExpiresWithRedisTTL(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	_, err = store.Get(ctx, sess.Key)
	assert.True(t, errors.Is(err, apperr.Unauthenticated))
}

func TestRefreshSlidesExpiry(t *testing.T) {
	store, mr, now := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	mr.FastForward(20 * time.Minute)

	refreshed, err := store.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), refreshed.ExpiresAt)
	assert.Equal(t, *now, refreshed.RefreshedAt)
	assert.Equal(t, sess.CreatedAt, refreshed.CreatedAt)
	assert.Equal(t, 30*time.Minute, mr.TTL(keyPrefix+sess.Key))
}

func TestRefreshDoesNotResurrect(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, sess.Key))

	_, err = store.Refresh(ctx, sess)
	assert.True(t, errors.Is(err, apperr.Unauthenticated))
}

func TestGetDropsStaleSession(t *testing.T) {
	store, mr, now := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	// Redis still holds the key but the recorded expiry has passed.
	*now = now.Add(31 * time.Minute)

	_, err = store.Get(ctx, sess.Key)
	assert.True(t, errors.Is(err, apperr.Unauthenticated))
	assert.False(t, mr.Exists(keyPrefix+sess.Key))
}
