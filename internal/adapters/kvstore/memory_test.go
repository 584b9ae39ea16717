package kvstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetRemove(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", value)

	// overwrite
	require.NoError(t, store.Set(ctx, "k", "v2"))
	value, _, _ = store.Get(ctx, "k")
	assert.Equal(t, "v2", value)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, "k"))
	_, found, _ = store.Get(ctx, "k")
	assert.False(t, found)

	// removing an absent key is not an error
	require.NoError(t, store.Remove(ctx, "k"))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, "shared", "x")
				_, _, _ = store.Get(ctx, "shared")
				_ = store.Remove(ctx, "shared")
			}
		}()
	}
	wg.Wait()
}
