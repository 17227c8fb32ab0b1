package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phraser/location-server/internal/models"
)

func TestMemoryStoreGetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := m.GetOrCreate(ctx, "client-a", now)
	require.NoError(t, err)
	assert.Equal(t, "client-a", s.ClientID)
	assert.Equal(t, now, s.LastRequestAt)

	again, err := m.GetOrCreate(ctx, "client-a", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, now, again.LastRequestAt, "existing session keeps its timestamp")
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreSaveIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()

	s, err := m.GetOrCreate(ctx, "a", now)
	require.NoError(t, err)
	s.CachedPhrases = []models.PhraseWrapper{{Phrase: "x", Translation: "y", Transliteration: "z"}}
	require.NoError(t, m.Save(ctx, s))

	// Mutating the caller's copy must not reach the store.
	s.CachedPhrases[0].Phrase = "mutated"

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got.CachedPhrases, 1)
	assert.Equal(t, "x", got.CachedPhrases[0].Phrase)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	m := NewMemoryStore()
	s, err := m.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMemoryStoreTouch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.GetOrCreate(ctx, "a", t0)
	require.NoError(t, err)

	t1 := t0.Add(3 * time.Second)
	require.NoError(t, m.Touch(ctx, "a", t1))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, t1, got.LastRequestAt)

	// touching an absent client is a no-op
	require.NoError(t, m.Touch(ctx, "ghost", t1))
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.GetOrCreate(ctx, "old", t0)
	require.NoError(t, err)
	_, err = m.GetOrCreate(ctx, "fresh", t0.Add(15*time.Second))
	require.NoError(t, err)

	removed, err := m.SweepExpired(ctx, t0.Add(25*time.Second), 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := m.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := m.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestMemoryStoreSweepPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s, err := m.GetOrCreate(ctx, "a", t0)
	require.NoError(t, err)
	pend := t0
	s.PendingGenerationAt = &pend
	require.NoError(t, m.Save(ctx, s))

	// inside the window: nothing cleared
	cleared, err := m.SweepPending(ctx, t0.Add(3*time.Second), 4*time.Second)
	require.NoError(t, err)
	assert.Zero(t, cleared)

	cleared, err = m.SweepPending(ctx, t0.Add(5*time.Second), 4*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.PendingGenerationAt)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.GetOrCreate(ctx, "a", time.Now())
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "a"))
	assert.Zero(t, m.Len())

	// deleting again is fine
	require.NoError(t, m.Delete(ctx, "a"))
}
