package lru

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_PerEntryExpiry(t *testing.T) {
	b := New(16, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, b.Set(ctx, "long", []byte("b"), 10*time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := b.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "short entry should have expired")

	val, ok, err := b.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), val)
}

func TestBackend_DeletePrefixAndKeys(t *testing.T) {
	b := New(16, time.Hour)
	ctx := context.Background()
	for _, key := range []string{"items:list:a", "items:list:b", "items:byid:abc", "items:byid:abcd"} {
		require.NoError(t, b.Set(ctx, key, []byte("x"), time.Minute))
	}

	n, err := b.DeletePrefix(ctx, "items:list:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, b.Delete(ctx, "items:byid:abc"))
	_, ok, _ := b.Get(ctx, "items:byid:abcd")
	assert.True(t, ok, "exact delete must not touch a longer key")
	assert.Equal(t, 1, b.Len())

	n, err = b.DeletePrefix(ctx, "nothing:")
	require.NoError(t, err)
	assert.Zero(t, n)
}
