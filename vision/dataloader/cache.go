package dataloader

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

// CacheManager manages a shared cache of preprocessed images keyed by path
type CacheManager struct {
	cache   *lru.Cache
	maxSize int

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheManager creates a new cache manager holding at most maxSize images
func NewCacheManager(maxSize int) (*CacheManager, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &CacheManager{cache: cache, maxSize: maxSize}, nil
}

// Get retrieves an image from the cache
func (cm *CacheManager) Get(key string) (*preprocessing.ProcessedImage, bool) {
	if v, ok := cm.cache.Get(key); ok {
		cm.hits.Add(1)
		return v.(*preprocessing.ProcessedImage), true
	}
	cm.misses.Add(1)
	return nil, false
}

// Put adds an image to the cache, evicting the least recently used entry when full
func (cm *CacheManager) Put(key string, img *preprocessing.ProcessedImage) {
	cm.cache.Add(key, img)
}

// Clear clears the cache. Statistics are kept.
func (cm *CacheManager) Clear() {
	cm.cache.Purge()
}

// ResetStats resets the statistics
func (cm *CacheManager) ResetStats() {
	cm.hits.Store(0)
	cm.misses.Store(0)
}

// Stats returns cache statistics
func (cm *CacheManager) Stats() CacheStats {
	hits, misses := cm.hits.Load(), cm.misses.Load()
	stats := CacheStats{
		Size:    cm.cache.Len(),
		MaxSize: cm.maxSize,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}

// CachedLoader serves images from a CacheManager and falls back to the
// wrapped loader on a miss. Failed loads are not cached.
type CachedLoader struct {
	loader  ImageLoader
	cache   *CacheManager
	metrics *Metrics
}

// NewCachedLoader wraps loader with cache
func NewCachedLoader(loader ImageLoader, cache *CacheManager, metrics *Metrics) *CachedLoader {
	return &CachedLoader{loader: loader, cache: cache, metrics: metrics}
}

// Load implements ImageLoader
func (cl *CachedLoader) Load(path string) (*preprocessing.ProcessedImage, error) {
	if img, ok := cl.cache.Get(path); ok {
		cl.metrics.cacheLookup(true)
		return img, nil
	}
	cl.metrics.cacheLookup(false)

	img, err := cl.loader.Load(path)
	if err != nil {
		return nil, err
	}
	cl.cache.Put(path, img)
	return img, nil
}
