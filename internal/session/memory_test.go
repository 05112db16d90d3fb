package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StateLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(DefaultTTL)
	s.now = func() time.Time { return now }

	state, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	require.NoError(t, s.Set(ctx, 1, StateAwaitingWithdrawAmount))
	state, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingWithdrawAmount, state)

	state, err = s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	require.NoError(t, s.Clear(ctx, 1))
	state, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
}

func TestMemoryStore_StateExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, 1, StateAwaitingChannel))

	now = now.Add(59 * time.Second)
	state, _ := s.Get(ctx, 1)
	assert.Equal(t, StateAwaitingChannel, state)

	now = now.Add(time.Second)
	state, _ = s.Get(ctx, 1)
	assert.Equal(t, StateNone, state)
}

func TestMemoryStore_SetNoneClears(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(DefaultTTL)
	require.NoError(t, s.Set(ctx, 1, StateAwaitingChannel))
	require.NoError(t, s.Set(ctx, 1, StateNone))
	state, _ := s.Get(ctx, 1)
	assert.Equal(t, StateNone, state)
}

func TestMemoryStore_MarkOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(DefaultTTL)
	s.now = func() time.Time { return now }

	first, err := s.MarkOnce(ctx, "w-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkOnce(ctx, "w-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.MarkOnce(ctx, "w-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	now = now.Add(time.Hour)
	expired, err := s.MarkOnce(ctx, "w-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, expired)

	require.NoError(t, s.Unmark(ctx, "w-1"))
	released, err := s.MarkOnce(ctx, "w-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, released)
}
