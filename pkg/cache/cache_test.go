package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestPackageHelpersRoundTrip(t *testing.T) {
	Use(NewMemoryStore())
	ctx := context.Background()

	var out []string
	assert.False(t, Get(ctx, "catalog", &out))

	require.NoError(t, Set(ctx, "catalog", []string{"a", "b"}, time.Minute))
	assert.True(t, Get(ctx, "catalog", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	require.NoError(t, Del(ctx, "catalog"))
	assert.False(t, Get(ctx, "catalog", &out))
}

func TestRememberLoadsOnce(t *testing.T) {
	Use(NewMemoryStore())
	ctx := context.Background()
	calls := 0
	load := func() (int, error) { calls++; return 42, nil }

	v, err := Remember(ctx, "answer", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Remember(ctx, "answer", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	Use(NewMemoryStore())
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := Remember(ctx, "k", time.Minute, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := Remember(ctx, "k", time.Minute, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
