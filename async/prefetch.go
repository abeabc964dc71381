// Package async runs batch loading in the background so the consumer of a
// batch never waits for image decoding.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tsawler/go-synth90k/vision/dataloader"
)

// ErrStopped is returned by GetBatch after Stop
var ErrStopped = errors.New("prefetcher has been stopped")

// BatchSource produces batches in order and returns nil, nil once exhausted.
// *dataloader.DataLoader is a BatchSource.
type BatchSource interface {
	NextBatch() (*dataloader.Batch, error)
}

// Prefetcher keeps up to PrefetchDepth batches ready ahead of the consumer
type Prefetcher struct {
	source        BatchSource
	prefetchDepth int

	batchChannel chan *dataloader.Batch
	errorChannel chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	batchCounter uint64
	isRunning    bool
	exhausted    bool
	mutex        sync.RWMutex
}

// PrefetcherConfig holds configuration for the prefetcher
type PrefetcherConfig struct {
	PrefetchDepth int // Number of batches to prefetch (default: 3)
}

// NewPrefetcher creates a prefetcher reading from source
func NewPrefetcher(source BatchSource, config PrefetcherConfig) (*Prefetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("batch source cannot be nil")
	}
	if config.PrefetchDepth <= 0 {
		config.PrefetchDepth = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		source:        source,
		prefetchDepth: config.PrefetchDepth,
		batchChannel:  make(chan *dataloader.Batch, config.PrefetchDepth),
		errorChannel:  make(chan error, 1),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins loading in the background
func (p *Prefetcher) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isRunning {
		return fmt.Errorf("prefetcher is already running")
	}
	if p.ctx.Err() != nil {
		return ErrStopped
	}

	p.wg.Add(1)
	go p.worker()

	p.isRunning = true
	return nil
}

// Stop cancels loading and waits for the worker to exit. Queued batches are
// discarded.
func (p *Prefetcher) Stop() error {
	p.mutex.Lock()
	if !p.isRunning {
		p.mutex.Unlock()
		p.cancel()
		return nil
	}
	p.mutex.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mutex.Lock()
	p.isRunning = false
	p.mutex.Unlock()
	return nil
}

// GetBatch returns the next batch, blocking until one is ready. It returns
// nil, nil once the source is exhausted and every queued batch was consumed.
// Start must have been called.
func (p *Prefetcher) GetBatch() (*dataloader.Batch, error) {
	if p.ctx.Err() != nil {
		return nil, ErrStopped
	}
	select {
	case batch, ok := <-p.batchChannel:
		if ok {
			return batch, nil
		}
		return p.finish()
	case <-p.ctx.Done():
		return nil, ErrStopped
	}
}

// TryGetBatch returns the next batch if one is ready, or nil, nil otherwise.
// Use Stats to tell an empty queue from an exhausted source.
func (p *Prefetcher) TryGetBatch() (*dataloader.Batch, error) {
	select {
	case batch, ok := <-p.batchChannel:
		if ok {
			return batch, nil
		}
		return p.finish()
	default:
		return nil, nil
	}
}

// finish reports the worker's error after the batch channel was drained.
// The error is returned once; later calls see a plain end of data.
func (p *Prefetcher) finish() (*dataloader.Batch, error) {
	if p.ctx.Err() != nil {
		return nil, ErrStopped
	}
	if err, ok := <-p.errorChannel; ok && err != nil {
		return nil, err
	}
	return nil, nil
}

// worker loads batches until the source is exhausted, fails or Stop is called
func (p *Prefetcher) worker() {
	defer p.wg.Done()
	defer close(p.batchChannel)
	defer close(p.errorChannel)

	for {
		if p.ctx.Err() != nil {
			return
		}

		batch, err := p.source.NextBatch()
		if err != nil {
			p.errorChannel <- fmt.Errorf("prefetch batch %d: %w", p.produced(), err)
			return
		}
		if batch == nil {
			p.mutex.Lock()
			p.exhausted = true
			p.mutex.Unlock()
			return
		}

		select {
		case p.batchChannel <- batch:
			p.mutex.Lock()
			p.batchCounter++
			p.mutex.Unlock()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Prefetcher) produced() uint64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.batchCounter
}

// Stats returns statistics about the prefetcher
func (p *Prefetcher) Stats() PrefetcherStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return PrefetcherStats{
		IsRunning:       p.isRunning,
		Exhausted:       p.exhausted,
		BatchesProduced: p.batchCounter,
		QueuedBatches:   len(p.batchChannel),
		QueueCapacity:   cap(p.batchChannel),
	}
}

// PrefetcherStats provides statistics about the prefetcher
type PrefetcherStats struct {
	IsRunning       bool
	Exhausted       bool
	BatchesProduced uint64
	QueuedBatches   int
	QueueCapacity   int
}
