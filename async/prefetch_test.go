package async

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tsawler/go-synth90k/vision/dataloader"
)

// fakeSource produces n single-sample batches, optionally failing at failAt
type fakeSource struct {
	mu     sync.Mutex
	n      int
	next   int
	failAt int
	block  chan struct{}
}

var errSource = errors.New("source failed")

func (s *fakeSource) NextBatch() (*dataloader.Batch, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt > 0 && s.next == s.failAt {
		return nil, errSource
	}
	if s.next >= s.n {
		return nil, nil
	}
	b := &dataloader.Batch{
		Images:  []float32{float32(s.next)},
		N:       1,
		Height:  1,
		Width:   1,
		Paths:   []string{"img.png"},
		Indices: []int{s.next},
	}
	s.next++
	return b, nil
}

// TestNewPrefetcher tests prefetcher creation
func TestNewPrefetcher(t *testing.T) {
	if _, err := NewPrefetcher(nil, PrefetcherConfig{}); err == nil {
		t.Error("Expected error for nil source")
	}

	p, err := NewPrefetcher(&fakeSource{}, PrefetcherConfig{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats := p.Stats(); stats.QueueCapacity != 3 || stats.IsRunning {
		t.Errorf("Unexpected initial stats %+v", stats)
	}
}

// TestPrefetcherOrder tests that every batch arrives once and in order
func TestPrefetcherOrder(t *testing.T) {
	p, err := NewPrefetcher(&fakeSource{n: 10}, PrefetcherConfig{PrefetchDepth: 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(); err == nil {
		t.Error("Expected error starting twice")
	}

	for i := 0; i < 10; i++ {
		b, err := p.GetBatch()
		if err != nil {
			t.Fatalf("GetBatch %d failed: %v", i, err)
		}
		if b == nil || b.Indices[0] != i {
			t.Fatalf("Expected batch %d, got %v", i, b)
		}
	}

	b, err := p.GetBatch()
	if b != nil || err != nil {
		t.Errorf("Expected end of data, got %v, %v", b, err)
	}

	stats := p.Stats()
	if !stats.Exhausted || stats.BatchesProduced != 10 {
		t.Errorf("Unexpected final stats %+v", stats)
	}
}

// TestPrefetcherError tests that a source error reaches the consumer after
// the batches produced before it
func TestPrefetcherError(t *testing.T) {
	p, _ := NewPrefetcher(&fakeSource{n: 10, failAt: 2}, PrefetcherConfig{})
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	for i := 0; i < 2; i++ {
		if b, err := p.GetBatch(); err != nil || b == nil {
			t.Fatalf("Expected batch %d, got %v, %v", i, b, err)
		}
	}
	if _, err := p.GetBatch(); !errors.Is(err, errSource) {
		t.Errorf("Expected source error, got %v", err)
	}
}

// TestPrefetcherStop tests that Stop unblocks the worker and GetBatch
func TestPrefetcherStop(t *testing.T) {
	source := &fakeSource{n: 100, block: make(chan struct{})}
	p, _ := NewPrefetcher(source, PrefetcherConfig{PrefetchDepth: 1})
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The first batch fills the queue, the second blocks the worker on send
	for i := 0; i < 2; i++ {
		source.block <- struct{}{}
	}
	close(source.block)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if _, err := p.GetBatch(); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped restarting, got %v", err)
	}
	if p.Stats().IsRunning {
		t.Error("Expected prefetcher to be stopped")
	}
}

// TestTryGetBatch tests the non-blocking path
func TestTryGetBatch(t *testing.T) {
	source := &fakeSource{n: 1, block: make(chan struct{})}
	p, _ := NewPrefetcher(source, PrefetcherConfig{})
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if b, err := p.TryGetBatch(); b != nil || err != nil {
		t.Errorf("Expected nothing ready, got %v, %v", b, err)
	}

	close(source.block)
	b, err := p.GetBatch()
	if err != nil || b == nil {
		t.Fatalf("Expected a batch, got %v, %v", b, err)
	}
}
