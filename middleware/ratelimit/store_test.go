package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Increment(t *testing.T) {
	store := NewMemoryStore()

	count, resetAt, err := store.Increment("client:auth", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, resetAt.After(time.Now()))

	count, sameReset, err := store.Increment("client:auth", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, resetAt, sameReset)
}

func TestMemoryStore_WindowElapsed(t *testing.T) {
	store := NewMemoryStore()

	count, _, err := store.Increment("client:auth", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	time.Sleep(20 * time.Millisecond)

	count, _, err = store.Increment("client:auth", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "elapsed window should start fresh")
}

func TestMemoryStore_Reset(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.Increment("client:auth", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Reset("client:auth"))

	count, _, err := store.Increment("client:auth", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.Increment("stale", time.Millisecond)
	require.NoError(t, err)
	_, _, err = store.Increment("fresh", time.Minute)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	removed := store.Sweep()
	assert.Equal(t, 1, removed)
}
