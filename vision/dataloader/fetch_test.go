package dataloader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tsawler/go-synth90k/vision/dataset"
	"github.com/tsawler/go-synth90k/vision/labels"
	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

// TestFetcherFetch tests the per-index fetch
func TestFetcherFetch(t *testing.T) {
	t.Run("LabeledSample", func(t *testing.T) {
		ds := NewMockDataset(3, "hello9")
		f := NewFetcher(ds, newMockLoader(100, 32), FetchConfig{})

		s, err := f.Fetch(2)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if s.Index != 2 || s.Path != "image_2.jpg" {
			t.Errorf("Unexpected sample %d %s", s.Index, s.Path)
		}
		if s.Height != 32 || s.Width != 100 || len(s.Image) != 3200 {
			t.Errorf("Unexpected image shape %v with %d values", s.Shape(), len(s.Image))
		}
		expected := []int32{18, 15, 22, 22, 25, 10}
		if fmt.Sprint(s.Label) != fmt.Sprint(expected) {
			t.Errorf("Expected %v, got %v", expected, s.Label)
		}
		if s.LabelLength != len(expected) || !s.Labeled() {
			t.Errorf("Expected labeled sample of length %d, got %d", len(expected), s.LabelLength)
		}
	})

	t.Run("UnlabeledSample", func(t *testing.T) {
		ds := &MockDataset{items: []dataset.Sample{dataset.Unlabeled{Path: "image_0.jpg"}}}
		f := NewFetcher(ds, newMockLoader(10, 4), FetchConfig{})

		s, err := f.Fetch(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s.Labeled() || s.Label != nil || s.LabelLength != 0 {
			t.Errorf("Expected unlabeled sample, got %+v", s)
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		f := NewFetcher(NewMockDataset(3), newMockLoader(10, 4), FetchConfig{})
		for _, idx := range []int{-1, 3} {
			if _, err := f.Fetch(idx); !errors.Is(err, dataset.ErrIndexOutOfRange) {
				t.Errorf("Expected ErrIndexOutOfRange for %d, got %v", idx, err)
			}
		}
	})

	t.Run("UnsupportedCharacterPropagates", func(t *testing.T) {
		f := NewFetcher(NewMockDataset(1, "Hello"), newMockLoader(10, 4), FetchConfig{})
		if _, err := f.Fetch(0); !errors.Is(err, labels.ErrUnsupportedCharacter) {
			t.Errorf("Expected ErrUnsupportedCharacter, got %v", err)
		}
	})

	t.Run("OtherLoaderErrorsPropagate", func(t *testing.T) {
		f := NewFetcher(NewMockDataset(2), failingLoader{}, FetchConfig{})
		_, err := f.Fetch(0)
		if err == nil || errors.Is(err, ErrEndOfDataset) {
			t.Errorf("Expected loader error, got %v", err)
		}
	})
}

// shortLoader returns images with fewer values than their declared shape
type shortLoader struct{}

func (shortLoader) Load(path string) (*preprocessing.ProcessedImage, error) {
	return &preprocessing.ProcessedImage{Data: make([]float32, 5), Width: 4, Height: 2, Channels: 1}, nil
}

// TestFetcherShapeMismatch tests that a bad image buffer reports its real size
func TestFetcherShapeMismatch(t *testing.T) {
	f := NewFetcher(NewMockDataset(1), shortLoader{}, FetchConfig{})
	_, err := f.Fetch(0)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Expected ErrShapeMismatch, got %v", err)
	}

	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Expected *ShapeMismatchError, got %T", err)
	}
	if fmt.Sprint(shapeErr.Expected) != "[1 2 4]" || fmt.Sprint(shapeErr.Got) != "[5]" {
		t.Errorf("Expected [1 2 4] vs [5], got %v vs %v", shapeErr.Expected, shapeErr.Got)
	}
}

type failingLoader struct{}

func (failingLoader) Load(path string) (*preprocessing.ProcessedImage, error) {
	return nil, errors.New("disk on fire")
}

// TestFetcherSkipPolicy tests substitution of unreadable images
func TestFetcherSkipPolicy(t *testing.T) {
	t.Run("SkipsToNextIndex", func(t *testing.T) {
		var logs bytes.Buffer
		logger := zerolog.New(&logs)
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)

		ds := NewMockDataset(5)
		loader := newMockLoader(10, 4, "image_1.jpg", "image_2.jpg")
		f := NewFetcher(ds, loader, FetchConfig{Logger: &logger, Metrics: metrics})

		s, err := f.Fetch(1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s.Index != 3 || s.Path != "image_3.jpg" {
			t.Errorf("Expected substitute index 3, got %d (%s)", s.Index, s.Path)
		}
		if s.Image[0] != 3 {
			t.Errorf("Expected image of sample 3, got marker %v", s.Image[0])
		}

		if !strings.Contains(logs.String(), "Corrupted image") || !strings.Contains(logs.String(), "image_2.jpg") {
			t.Errorf("Expected warnings for skipped images, got %s", logs.String())
		}
		if got := testutil.ToFloat64(metrics.ImagesSkipped); got != 2 {
			t.Errorf("Expected 2 skipped images, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.SamplesFetched); got != 1 {
			t.Errorf("Expected 1 fetched sample, got %v", got)
		}
	})

	t.Run("LastIndexCorrupt", func(t *testing.T) {
		ds := NewMockDataset(3)
		f := NewFetcher(ds, newMockLoader(10, 4, "image_2.jpg"), FetchConfig{})

		_, err := f.Fetch(2)
		if !errors.Is(err, ErrEndOfDataset) {
			t.Fatalf("Expected ErrEndOfDataset, got %v", err)
		}
		var endErr *EndOfDatasetError
		if !errors.As(err, &endErr) || endErr.Index != 2 || endErr.Skipped != 1 || endErr.Limit != 0 {
			t.Errorf("Unexpected error details %+v", endErr)
		}
	})

	t.Run("SkipLimit", func(t *testing.T) {
		ds := NewMockDataset(10)
		loader := newMockLoader(10, 4, "image_0.jpg", "image_1.jpg", "image_2.jpg")

		f := NewFetcher(ds, loader, FetchConfig{MaxSkips: 2})
		_, err := f.Fetch(0)
		var endErr *EndOfDatasetError
		if !errors.As(err, &endErr) || endErr.Limit != 2 || endErr.Skipped != 3 {
			t.Fatalf("Expected skip limit error, got %v", err)
		}
		if loader.loadCount("image_3.jpg") != 0 {
			t.Error("Should not look past the skip limit")
		}

		f = NewFetcher(ds, loader, FetchConfig{MaxSkips: 3})
		s, err := f.Fetch(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s.Index != 3 {
			t.Errorf("Expected index 3, got %d", s.Index)
		}
	})
}
