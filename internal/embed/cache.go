package embed

import lru "github.com/hashicorp/golang-lru/v2"

// Cache is an in-memory LRU of embedding vectors keyed by content hash.
// Re-ingesting an unchanged document costs no provider calls.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to size vectors. Non-positive sizes
// fall back to DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		// lru.New only fails on non-positive size.
		c, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: c}
}

// Get returns a copy of the cached vector, so callers cannot mutate the
// cached value through the returned slice.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.cache.Purge()
}
