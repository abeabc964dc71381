package dataloader

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfDataset is matched by every *EndOfDatasetError.
	ErrEndOfDataset = errors.New("end of dataset")

	// ErrShapeMismatch is matched by every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("image shape mismatch")

	// ErrEmptyBatch is returned when collating zero samples.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrMixedLabels is returned when labeled and unlabeled samples are collated together.
	ErrMixedLabels = errors.New("cannot mix labeled and unlabeled samples")
)

// EndOfDatasetError is returned when a fetch had to skip unreadable images
// and no readable image was left to substitute.
type EndOfDatasetError struct {
	// Index is the position originally requested.
	Index int
	// Skipped counts the unreadable images passed over.
	Skipped int
	// Limit is the skip limit that stopped the search, 0 if the end of the
	// collection was reached instead.
	Limit int
}

func (e *EndOfDatasetError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("dataloader: %v: index %d: %d unreadable images exceed skip limit %d", ErrEndOfDataset, e.Index, e.Skipped, e.Limit)
	}
	return fmt.Sprintf("dataloader: %v: index %d: no readable image after skipping %d", ErrEndOfDataset, e.Index, e.Skipped)
}

func (e *EndOfDatasetError) Is(target error) bool {
	return target == ErrEndOfDataset
}

// ShapeMismatchError reports a sample whose image shape differs from the first
// sample of the batch
type ShapeMismatchError struct {
	Position int
	Expected []int
	Got      []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("dataloader: %v: sample %d has shape %v, expected %v", ErrShapeMismatch, e.Position, e.Got, e.Expected)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
