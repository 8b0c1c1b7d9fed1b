package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginState struct {
	Provider string `json:"provider"`
	Redirect string `json:"redirect"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", loginState{Provider: "github", Redirect: "/home"}, 0))

	var got loginState
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, loginState{Provider: "github", Redirect: "/home"}, got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_Missing(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	var got loginState
	err := c.Get(context.Background(), "nope", &got)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrKeyNotFound)
}

func TestMemoryCache_TakeOnce(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "state", loginState{Provider: "workos"}, 0))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got loginState
			if c.Take(ctx, "state", &got) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	ok, _ := c.Exists(ctx, "state")
	assert.False(t, ok)
}

func TestMemoryCache_DeleteAndClose(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))

	require.NoError(t, c.Delete(ctx, "a"))
	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Close())
	ok, _ = c.Exists(ctx, "b")
	assert.False(t, ok)
}
