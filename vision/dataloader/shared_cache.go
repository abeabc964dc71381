package dataloader

import (
	"sync"
)

// SharedCacheManager hands out named caches that several DataLoaders can share
type SharedCacheManager struct {
	mu     sync.Mutex
	caches map[string]*CacheManager
}

var (
	globalSharedCache *SharedCacheManager
	sharedCacheOnce   sync.Once
)

// GetGlobalSharedCache returns the process-wide shared cache manager
func GetGlobalSharedCache() *SharedCacheManager {
	sharedCacheOnce.Do(func() {
		globalSharedCache = NewSharedCacheManager()
	})
	return globalSharedCache
}

// NewSharedCacheManager creates an empty shared cache manager
func NewSharedCacheManager() *SharedCacheManager {
	return &SharedCacheManager{caches: make(map[string]*CacheManager)}
}

// GetOrCreateCache gets or creates the cache with the given name. maxSize is
// only used when the cache is created.
func (scm *SharedCacheManager) GetOrCreateCache(name string, maxSize int) (*CacheManager, error) {
	scm.mu.Lock()
	defer scm.mu.Unlock()

	if cache, exists := scm.caches[name]; exists {
		return cache, nil
	}

	cache, err := NewCacheManager(maxSize)
	if err != nil {
		return nil, err
	}
	scm.caches[name] = cache
	return cache, nil
}

// RemoveCache removes a cache by name
func (scm *SharedCacheManager) RemoveCache(name string) {
	scm.mu.Lock()
	defer scm.mu.Unlock()
	delete(scm.caches, name)
}

// ClearAllCaches clears all managed caches
func (scm *SharedCacheManager) ClearAllCaches() {
	scm.mu.Lock()
	defer scm.mu.Unlock()

	for _, cache := range scm.caches {
		cache.Clear()
	}
}

// CreateSharedDataLoaders creates train and validation DataLoaders reading
// images through one cache. The train loader shuffles, the validation loader does not.
func CreateSharedDataLoaders(trainDataset, valDataset Dataset, loader ImageLoader, config Config) (*DataLoader, *DataLoader, error) {
	cacheSize := config.MaxCacheSize
	if cacheSize <= 0 {
		cacheSize = trainDataset.Len() + valDataset.Len()
	}

	sharedCache := config.CacheManager
	if sharedCache == nil {
		var err error
		sharedCache, err = NewCacheManager(cacheSize)
		if err != nil {
			return nil, nil, err
		}
	}

	trainConfig := config
	trainConfig.CacheManager = sharedCache
	trainConfig.Shuffle = true
	trainLoader, err := NewDataLoader(trainDataset, loader, trainConfig)
	if err != nil {
		return nil, nil, err
	}

	valConfig := config
	valConfig.CacheManager = sharedCache
	valConfig.Shuffle = false
	valConfig.DropLast = false
	valLoader, err := NewDataLoader(valDataset, loader, valConfig)
	if err != nil {
		return nil, nil, err
	}

	return trainLoader, valLoader, nil
}
