package dataloader

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tsawler/go-synth90k/vision/dataset"
	"github.com/tsawler/go-synth90k/vision/labels"
	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

// Dataset interface defines the contract for datasets
type Dataset interface {
	Len() int
	Sample(index int) (dataset.Sample, error)
}

// ImageLoader produces a preprocessed image for a sample path. Failures to
// read or decode the image must match preprocessing.ErrImageDecode.
type ImageLoader interface {
	Load(path string) (*preprocessing.ProcessedImage, error)
}

// FetchConfig holds configuration for a Fetcher
type FetchConfig struct {
	// MaxSkips bounds how many unreadable images one fetch may pass over.
	// 0 means the search may run to the end of the dataset.
	MaxSkips int
	Logger   *zerolog.Logger
	Metrics  *Metrics
}

// Fetcher produces EncodedSamples by position. It holds no mutable state and
// may be called from many goroutines.
type Fetcher struct {
	dataset  Dataset
	loader   ImageLoader
	maxSkips int
	logger   zerolog.Logger
	metrics  *Metrics
}

// NewFetcher creates a fetcher reading images through loader
func NewFetcher(ds Dataset, loader ImageLoader, config FetchConfig) *Fetcher {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	maxSkips := config.MaxSkips
	if maxSkips < 0 {
		maxSkips = 0
	}

	return &Fetcher{
		dataset:  ds,
		loader:   loader,
		maxSkips: maxSkips,
		logger:   logger.With().Str("component", "fetcher").Logger(),
		metrics:  config.Metrics,
	}
}

// Len returns the size of the underlying dataset
func (f *Fetcher) Len() int {
	return f.dataset.Len()
}

// Fetch loads and encodes the sample at index. If its image cannot be decoded
// the failure is logged and the next position is tried instead, until a
// readable image is found, MaxSkips is exceeded or the dataset ends; the latter
// two return an *EndOfDatasetError. All other errors are returned as is.
func (f *Fetcher) Fetch(index int) (*EncodedSample, error) {
	n := f.dataset.Len()
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", dataset.ErrIndexOutOfRange, index, n)
	}

	skipped := 0
	for i := index; i < n; i++ {
		s, err := f.dataset.Sample(i)
		if err != nil {
			return nil, err
		}

		img, err := f.loader.Load(s.ImagePath())
		if err == nil {
			return f.encode(i, s, img)
		}
		if !errors.Is(err, preprocessing.ErrImageDecode) {
			return nil, err
		}

		f.logger.Warn().
			Err(err).
			Int("index", i).
			Str("path", s.ImagePath()).
			Msg("Corrupted image, skipping to next index")
		f.metrics.imageSkipped()

		skipped++
		if f.maxSkips > 0 && skipped > f.maxSkips {
			return nil, &EndOfDatasetError{Index: index, Skipped: skipped, Limit: f.maxSkips}
		}
	}

	return nil, &EndOfDatasetError{Index: index, Skipped: skipped}
}

func (f *Fetcher) encode(index int, s dataset.Sample, img *preprocessing.ProcessedImage) (*EncodedSample, error) {
	if img.Channels != 1 || len(img.Data) != img.Width*img.Height {
		got := []int{img.Channels, img.Height, img.Width}
		if len(img.Data) != img.Channels*img.Height*img.Width {
			got = []int{len(img.Data)}
		}
		return nil, &ShapeMismatchError{
			Position: index,
			Expected: []int{1, img.Height, img.Width},
			Got:      got,
		}
	}

	out := &EncodedSample{
		Index:  index,
		Path:   s.ImagePath(),
		Image:  img.Data,
		Height: img.Height,
		Width:  img.Width,
	}

	switch s := s.(type) {
	case dataset.Labeled:
		codes, err := labels.Encode(s.Text)
		if err != nil {
			return nil, fmt.Errorf("sample %d (%s): %w", index, s.Path, err)
		}
		out.Label = codes
		out.LabelLength = len(codes)
		out.labeled = true
	case dataset.Unlabeled:
	}

	f.metrics.sampleFetched()
	return out, nil
}
