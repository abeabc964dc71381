package dataloader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DataLoader assembles batches from a Dataset: it orders positions, fetches
// the samples of each batch concurrently and collates them.
type DataLoader struct {
	fetcher    *Fetcher
	batchSize  int
	shuffle    bool
	dropLast   bool
	numWorkers int
	rng        *rand.Rand
	indices    []int
	position   int
	mu         sync.Mutex

	// Cache manager - can be shared between DataLoaders
	cacheManager *CacheManager
	ownedCache   bool

	metrics *Metrics
	logger  zerolog.Logger
}

// Config holds configuration for DataLoader
type Config struct {
	BatchSize int
	Shuffle   bool
	// Seed for shuffling. 0 picks a time-based seed.
	Seed int64
	// DropLast drops the final batch when it is smaller than BatchSize
	DropLast bool
	// NumWorkers is the number of samples fetched in parallel within a batch
	NumWorkers int
	// MaxCacheSize is the number of images to cache; 0 disables caching
	// unless CacheManager is set
	MaxCacheSize int
	CacheManager *CacheManager
	// MaxSkips bounds unreadable images skipped per fetch, 0 for no bound
	MaxSkips int
	Metrics  *Metrics
	Logger   *zerolog.Logger
}

// NewDataLoader creates a new data loader
func NewDataLoader(ds Dataset, loader ImageLoader, config Config) (*DataLoader, error) {
	if ds == nil || loader == nil {
		return nil, fmt.Errorf("dataset and image loader are required")
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	// Use provided cache manager or create a new one
	cacheManager := config.CacheManager
	ownedCache := false
	if cacheManager == nil && config.MaxCacheSize > 0 {
		var err error
		cacheManager, err = NewCacheManager(config.MaxCacheSize)
		if err != nil {
			return nil, err
		}
		ownedCache = true
	}
	if cacheManager != nil {
		loader = NewCachedLoader(loader, cacheManager, config.Metrics)
	}

	indices := make([]int, ds.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		fetcher: NewFetcher(ds, loader, FetchConfig{
			MaxSkips: config.MaxSkips,
			Logger:   &logger,
			Metrics:  config.Metrics,
		}),
		batchSize:    config.BatchSize,
		shuffle:      config.Shuffle,
		dropLast:     config.DropLast,
		numWorkers:   config.NumWorkers,
		rng:          rand.New(rand.NewSource(config.Seed)),
		indices:      indices,
		cacheManager: cacheManager,
		ownedCache:   ownedCache,
		metrics:      config.Metrics,
		logger:       logger.With().Str("component", "dataloader").Logger(),
	}

	if dl.shuffle {
		dl.shuffleIndices()
	}
	return dl, nil
}

func (dl *DataLoader) shuffleIndices() {
	dl.rng.Shuffle(len(dl.indices), func(i, j int) {
		dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
	})
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	n := len(dl.indices)
	if dl.dropLast {
		return n / dl.batchSize
	}
	return (n + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader to the beginning, reshuffling if enabled
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.shuffleIndices()
	}
}

// NextBatch loads the next batch. It returns nil, nil at the end of the epoch.
// Positions whose fetch ran off the end of the dataset are left out of the
// batch, so a batch can hold fewer than BatchSize samples.
func (dl *DataLoader) NextBatch() (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	for {
		remaining := len(dl.indices) - dl.position
		if remaining <= 0 {
			return nil, nil
		}

		batchSize := dl.batchSize
		if remaining < batchSize {
			if dl.dropLast {
				dl.position = len(dl.indices)
				return nil, nil
			}
			batchSize = remaining
		}

		batchIndices := dl.indices[dl.position : dl.position+batchSize]
		dl.position += batchSize

		samples, err := dl.fetchAll(batchIndices)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			dl.logger.Warn().Int("position", dl.position).Msg("No readable samples in batch, moving on")
			continue
		}

		batch, err := Collate(samples)
		if err != nil {
			return nil, err
		}
		dl.metrics.batchCollated()
		return batch, nil
	}
}

// fetchAll fetches indices concurrently and returns the samples in index order
func (dl *DataLoader) fetchAll(indices []int) ([]*EncodedSample, error) {
	samples := make([]*EncodedSample, len(indices))

	var g errgroup.Group
	g.SetLimit(dl.numWorkers)
	for i, idx := range indices {
		g.Go(func() error {
			s, err := dl.fetcher.Fetch(idx)
			if errors.Is(err, ErrEndOfDataset) {
				dl.logger.Warn().Err(err).Int("index", idx).Msg("Dropping sample from batch")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load sample %d: %w", idx, err)
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := samples[:0]
	for _, s := range samples {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// Iterator resets the loader and streams one epoch of batches. The batch
// channel is closed at the end of the epoch, on error or when ctx is done;
// at most one error is sent.
func (dl *DataLoader) Iterator(ctx context.Context) (<-chan *Batch, <-chan error) {
	batchChan := make(chan *Batch, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(batchChan)
		defer close(errChan)

		dl.Reset()

		for {
			if err := ctx.Err(); err != nil {
				errChan <- err
				return
			}

			batch, err := dl.NextBatch()
			if err != nil {
				errChan <- err
				return
			}
			if batch == nil {
				return
			}

			select {
			case batchChan <- batch:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return batchChan, errChan
}

// Fetch returns a single sample, bypassing batching
func (dl *DataLoader) Fetch(index int) (*EncodedSample, error) {
	return dl.fetcher.Fetch(index)
}

// Stats returns cache statistics
func (dl *DataLoader) Stats() string {
	if dl.cacheManager == nil {
		return "Cache: disabled"
	}
	return dl.cacheManager.Stats().String()
}

// Progress returns the current progress through the dataset
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// ClearCache clears the image cache if this loader owns it
func (dl *DataLoader) ClearCache() {
	if dl.ownedCache && dl.cacheManager != nil {
		dl.cacheManager.Clear()
	}
}

// GetCacheManager returns the cache manager for sharing between DataLoaders
func (dl *DataLoader) GetCacheManager() *CacheManager {
	return dl.cacheManager
}
