package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, len("k")+len("v2"), s.Used())

	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"), "removing a missing key is not an error")
	assert.Equal(t, 0, s.Used())
}

func TestMemoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "a", "12345"))

	err := s.Set(ctx, "b", "123456789")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound, "rejected write must not be stored")

	// overwriting counts the replaced value out first
	require.NoError(t, s.Set(ctx, "a", "123456789"))
	assert.Equal(t, 10, s.Used())
}

func TestMemoryStore_Disabled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Set(ctx, "k", "v"))

	s.SetDisabled(true)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrUnavailable)
	assert.ErrorIs(t, s.Remove(ctx, "k"), ErrUnavailable)

	s.SetDisabled(false)
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
