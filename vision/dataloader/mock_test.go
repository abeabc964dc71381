package dataloader

import (
	"fmt"
	"sync"

	"github.com/tsawler/go-synth90k/vision/dataset"
	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

// MockDataset implements the Dataset interface for testing
type MockDataset struct {
	items []dataset.Sample
}

func (md *MockDataset) Len() int {
	return len(md.items)
}

func (md *MockDataset) Sample(index int) (dataset.Sample, error) {
	if index < 0 || index >= len(md.items) {
		return nil, fmt.Errorf("%w: %d", dataset.ErrIndexOutOfRange, index)
	}
	return md.items[index], nil
}

// NewMockDataset creates a labeled mock dataset; item i has path "image_i.jpg"
// and a text cycling through texts
func NewMockDataset(numItems int, texts ...string) *MockDataset {
	if len(texts) == 0 {
		texts = []string{"ab", "cde", "f"}
	}
	items := make([]dataset.Sample, numItems)
	for i := range items {
		items[i] = dataset.Labeled{
			Path: fmt.Sprintf("image_%d.jpg", i),
			Text: texts[i%len(texts)],
		}
	}
	return &MockDataset{items: items}
}

// mockLoader returns a constant image whose first pixel encodes the path
// number, and fails for paths listed in corrupt
type mockLoader struct {
	width, height int
	corrupt       map[string]bool

	mu    sync.Mutex
	loads map[string]int
}

func newMockLoader(width, height int, corrupt ...string) *mockLoader {
	l := &mockLoader{
		width:   width,
		height:  height,
		corrupt: make(map[string]bool),
		loads:   make(map[string]int),
	}
	for _, p := range corrupt {
		l.corrupt[p] = true
	}
	return l
}

func (l *mockLoader) Load(path string) (*preprocessing.ProcessedImage, error) {
	l.mu.Lock()
	l.loads[path]++
	l.mu.Unlock()

	if l.corrupt[path] {
		return nil, &preprocessing.ImageDecodeError{Path: path, Err: fmt.Errorf("truncated data")}
	}

	var n int
	fmt.Sscanf(path, "image_%d.jpg", &n)

	data := make([]float32, l.width*l.height)
	data[0] = float32(n)
	return &preprocessing.ProcessedImage{Data: data, Width: l.width, Height: l.height, Channels: 1}, nil
}

func (l *mockLoader) loadCount(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[path]
}
