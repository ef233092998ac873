package normalize

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	cache, err := NewCache(CacheConfig{
		HotCapacity: 4,
		WarmPath:    filepath.Join(dir, "warm.bin"),
		ColdDir:     filepath.Join(dir, "cold"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCacheHotRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	hash := ContentHash("hello")
	_, ok := cache.Lookup(hash)
	require.False(t, ok)

	cache.Store(hash, "hello")
	text, ok := cache.Lookup(hash)
	require.True(t, ok)
	require.Equal(t, "hello", text)
}

func TestCacheWarmFallback(t *testing.T) {
	cache := newTestCache(t)
	hash := ContentHash("warm path")
	require.NoError(t, cache.warm.put(hash, "warm path"))

	text, ok := cache.Lookup(hash)
	require.True(t, ok)
	require.Equal(t, "warm path", text)
	// promoted into hot
	_, hot := cache.hot.get(hash)
	require.True(t, hot)
}

func TestCacheColdFallback(t *testing.T) {
	cache := newTestCache(t)
	hash := ContentHash("cold path")
	require.NoError(t, cache.cold.put(hash, "cold path"))

	text, ok := cache.Lookup(hash)
	require.True(t, ok)
	require.Equal(t, "cold path", text)
}

func TestCacheStoreAsyncPropagates(t *testing.T) {
	cache := newTestCache(t)
	hash := ContentHash("async")
	cache.Store(hash, "async")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := cache.warm.get(hash); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("warm tier never observed async store")
}
