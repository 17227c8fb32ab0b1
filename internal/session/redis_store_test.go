package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phraser/location-server/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, 20*time.Second), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := store.GetOrCreate(ctx, "client-a", now)
	require.NoError(t, err)
	require.Equal(t, "client-a", s.ClientID)

	s.LastPlaceKey = "Jigok-ro 1"
	s.CachedPhrases = []models.PhraseWrapper{
		{Phrase: "Can I have an Americano?", Translation: "아메리카노 하나 주세요.", Transliteration: "Amerikano hana juseyo."},
	}
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "client-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jigok-ro 1", got.LastPlaceKey)
	assert.Equal(t, s.CachedPhrases, got.CachedPhrases)
	assert.True(t, got.LastRequestAt.Equal(now))
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newRedisStore(t)
	got, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, mr.Set("session:bad", "{not json"))
	got, err := store.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("session:bad"), "corrupt entry is dropped")
}

func TestRedisStoreTTLEviction(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	_, err := store.GetOrCreate(ctx, "a", time.Now())
	require.NoError(t, err)

	mr.FastForward(21 * time.Second)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got, "entry expires via redis TTL")
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	_, err := store.GetOrCreate(ctx, "a", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "a"))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreSweepsAreNoOps(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	n, err := store.SweepExpired(ctx, time.Now(), time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.SweepPending(ctx, time.Now(), time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
}
