package normalize

import "sync"

// DedupMode governs what happens when an incoming document's content hash
// matches an existing cache entry.
type DedupMode int

const (
	DedupSkip DedupMode = iota
	DedupWarn
	DedupAlwaysInsert
)

// Cache is the process-wide, shared three-tier normalization cache. It is
// reference-counted across collections (see Acquire/Release). Only the hot
// tier evicts (least-frequently-used entry first, when full); the warm and
// cold tiers keep every entry.
type Cache struct {
	hot  *hotTier
	warm *warmTier
	cold *coldTier

	mu       sync.Mutex
	refCount int
}

// CacheConfig configures tier sizing and on-disk locations.
type CacheConfig struct {
	HotCapacity int
	WarmPath    string // cache/normalization_warm.bin
	ColdDir     string // cache/normalization_cold/
}

// NewCache opens (or creates) the three tiers described in spec.md §4.3.
func NewCache(cfg CacheConfig) (*Cache, error) {
	warm, err := openWarmTier(cfg.WarmPath)
	if err != nil {
		return nil, err
	}
	cold, err := openColdTier(cfg.ColdDir)
	if err != nil {
		warm.close()
		return nil, err
	}
	return &Cache{
		hot:  newHotTier(cfg.HotCapacity),
		warm: warm,
		cold: cold,
	}, nil
}

// Acquire increments the cache's reference count; call Release when a
// collection stops sharing it.
func (c *Cache) Acquire() {
	c.mu.Lock()
	c.refCount++
	c.mu.Unlock()
}

// Release decrements the reference count and closes the underlying tiers
// once it reaches zero.
func (c *Cache) Release() error {
	c.mu.Lock()
	c.refCount--
	drain := c.refCount <= 0
	c.mu.Unlock()
	if !drain {
		return nil
	}
	return c.Close()
}

// Close flushes and closes the warm and cold tiers.
func (c *Cache) Close() error {
	if err := c.warm.close(); err != nil {
		return err
	}
	return c.cold.close()
}

// Lookup probes hot -> warm -> cold, promoting a hit up to hot. Returns the
// normalized text and true if found in any tier.
func (c *Cache) Lookup(hash [32]byte) (string, bool) {
	if text, ok := c.hot.get(hash); ok {
		return text, true
	}
	if text, ok := c.warm.get(hash); ok {
		c.hot.put(hash, text)
		return text, true
	}
	if text, ok := c.cold.get(hash); ok {
		c.hot.put(hash, text)
		return text, true
	}
	return "", false
}

// Store writes to hot synchronously and warm+cold asynchronously, per
// spec.md §4.3 "Writes go to hot and asynchronously to warm+cold."
func (c *Cache) Store(hash [32]byte, text string) {
	c.hot.put(hash, text)
	go func() {
		_ = c.warm.put(hash, text)
		_ = c.cold.put(hash, text)
	}()
}

// HotSize reports the current hot-tier entry count, for stats/metrics.
func (c *Cache) HotSize() int { return c.hot.len() }
