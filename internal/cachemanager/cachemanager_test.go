package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   int
	Name string
}

func TestInMemoryCacheManager_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, entry]("test", DefaultExpiration, DefaultCleanupInterval)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Set(ctx, "a", entry{ID: 1, Name: "apple"}, DefaultExpiration)
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "apple", got.Name)
	assert.Equal(t, 1, c.Len())

	c.Delete(ctx, "a")
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestInMemoryCacheManager_AddOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, bool]("throttle", DefaultExpiration, DefaultCleanupInterval)

	assert.True(t, c.Add(ctx, "k", true, time.Minute))
	assert.False(t, c.Add(ctx, "k", true, time.Minute))

	c.Flush(ctx)
	assert.True(t, c.Add(ctx, "k", true, time.Minute))
}

func TestInMemoryCacheManager_AddAfterExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, bool]("throttle", DefaultExpiration, DefaultCleanupInterval)

	require.True(t, c.Add(ctx, "k", true, 10*time.Millisecond))
	require.Eventually(t, func() bool {
		return c.Add(ctx, "k", true, time.Minute)
	}, time.Second, 5*time.Millisecond)
}

func TestReadThroughCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fail := false
	load := func(_ context.Context, key string) (string, error) {
		calls++
		if fail {
			return "", errors.New("boom")
		}
		return "value:" + key, nil
	}
	r := NewReadThroughCache[string, string](
		NewInMemoryCacheManager[string, string]("rt", DefaultExpiration, DefaultCleanupInterval), load, time.Minute)

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "value:x", v)

	_, err = r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	r.Invalidate(ctx, "x")
	fail = true
	_, err = r.Get(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	fail = false
	_, err = r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
