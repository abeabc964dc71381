package dataloader

import (
	"fmt"

	"github.com/tsawler/go-synth90k/vision/labels"
)

// EncodedSample is one fetched dataset item
type EncodedSample struct {
	// Index is the dataset position the image was read from. It differs from
	// the requested position when unreadable images were skipped.
	Index int
	Path  string

	// Image holds 1*Height*Width normalized pixels in CHW order.
	// It may be shared with an image cache and must not be modified.
	Image  []float32
	Height int
	Width  int

	// Label is nil for unlabeled samples
	Label       []int32
	LabelLength int

	labeled bool
}

// Labeled reports whether the sample carries a label
func (s *EncodedSample) Labeled() bool {
	return s.labeled
}

// Shape returns [1, Height, Width]
func (s *EncodedSample) Shape() []int {
	return []int{1, s.Height, s.Width}
}

// Batch is a collated group of samples. Labels holds every sample's codes
// back to back; Lengths[i] is the number of codes belonging to sample i.
type Batch struct {
	Images []float32 `json:"images"`
	N      int       `json:"n"`
	Height int       `json:"height"`
	Width  int       `json:"width"`

	Labels  []int32 `json:"labels"`
	Lengths []int32 `json:"lengths"`

	Paths   []string `json:"paths"`
	Indices []int    `json:"indices"`
}

// Shape returns the image tensor shape [N, 1, H, W]
func (b *Batch) Shape() []int {
	return []int{b.N, 1, b.Height, b.Width}
}

// Labeled reports whether the batch carries labels
func (b *Batch) Labeled() bool {
	return b.Lengths != nil
}

// Image returns the pixels of sample i, or nil when i is not in [0, N)
func (b *Batch) Image(i int) []float32 {
	size := b.Height * b.Width
	if i < 0 || i >= b.N || (i+1)*size > len(b.Images) {
		return nil
	}
	return b.Images[i*size : (i+1)*size]
}

// Offsets returns the start of each sample's codes within Labels
func (b *Batch) Offsets() []int {
	offsets := make([]int, len(b.Lengths))
	sum := 0
	for i, n := range b.Lengths {
		offsets[i] = sum
		sum += int(n)
	}
	return offsets
}

// Label returns the codes of sample i
func (b *Batch) Label(i int) []int32 {
	start := b.Offsets()[i]
	return b.Labels[start : start+int(b.Lengths[i])]
}

// Texts decodes every sample's label
func (b *Batch) Texts() ([]string, error) {
	parts, err := labels.Split(b.Labels, b.Lengths)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(parts))
	for i, codes := range parts {
		texts[i], err = labels.Decode(codes)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return texts, nil
}

// Collate stacks the images of samples into one tensor and concatenates their
// labels, keeping input order. Unlabeled samples produce a batch with nil
// Labels and Lengths.
func Collate(samples []*EncodedSample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, s := range samples {
		if s == nil {
			return nil, fmt.Errorf("dataloader: sample %d is nil", i)
		}
	}

	first := samples[0]
	height, width := first.Height, first.Width
	size := height * width
	labeled := first.Labeled()

	totalLabels := 0
	for i, s := range samples {
		if s.Height != height || s.Width != width || len(s.Image) != size {
			got := []int{1, s.Height, s.Width}
			if len(s.Image) != s.Height*s.Width {
				got = []int{len(s.Image)}
			}
			return nil, &ShapeMismatchError{Position: i, Expected: first.Shape(), Got: got}
		}
		if s.Labeled() != labeled {
			return nil, fmt.Errorf("dataloader: sample %d: %w", i, ErrMixedLabels)
		}
		if labeled && s.LabelLength != len(s.Label) {
			return nil, fmt.Errorf("dataloader: sample %d: label length %d does not match %d codes", i, s.LabelLength, len(s.Label))
		}
		totalLabels += len(s.Label)
	}

	batch := &Batch{
		Images:  make([]float32, len(samples)*size),
		N:       len(samples),
		Height:  height,
		Width:   width,
		Paths:   make([]string, len(samples)),
		Indices: make([]int, len(samples)),
	}
	if labeled {
		batch.Labels = make([]int32, 0, totalLabels)
		batch.Lengths = make([]int32, len(samples))
	}

	for i, s := range samples {
		copy(batch.Images[i*size:(i+1)*size], s.Image)
		batch.Paths[i] = s.Path
		batch.Indices[i] = s.Index
		if labeled {
			batch.Labels = append(batch.Labels, s.Label...)
			batch.Lengths[i] = int32(s.LabelLength)
		}
	}

	return batch, nil
}
