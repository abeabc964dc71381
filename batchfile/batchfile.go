// Package batchfile stores collated batches on disk so a data pipeline run can
// be replayed or inspected without decoding the images again.
package batchfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsawler/go-synth90k/vision/dataloader"
)

// Format defines the serialization format
type Format int

const (
	FormatJSON Format = iota
	FormatProto
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatProto:
		return "Proto"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension used for the format
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatProto:
		return ".pb"
	default:
		return ""
	}
}

// FormatFromPath picks the format matching the file extension of path
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".pb":
		return FormatProto, nil
	default:
		return 0, errors.Errorf("cannot infer batch file format from %q (want .json or .pb)", path)
	}
}

// ErrCorrupt is returned when a stored batch violates the batch invariants
var ErrCorrupt = errors.New("corrupt batch file")

// Metadata describes how the stored batches were produced
type Metadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Split       string    `json:"split,omitempty"`
	Description string    `json:"description,omitempty"`
}

// File is the content of a batch file
type File struct {
	Metadata Metadata            `json:"metadata"`
	Batches  []*dataloader.Batch `json:"batches"`
}

// Saver handles saving and loading batch files in one format
type Saver struct {
	format Format
}

// NewSaver creates a new saver for the specified format
func NewSaver(format Format) *Saver {
	return &Saver{format: format}
}

// Save writes f to path
func (s *Saver) Save(path string, f *File) error {
	if f.Metadata.Framework == "" {
		f.Metadata.Framework = "go-synth90k"
		f.Metadata.Version = "1.0.0"
	}
	if f.Metadata.CreatedAt.IsZero() {
		f.Metadata.CreatedAt = time.Now()
	}

	switch s.format {
	case FormatJSON:
		return s.saveJSON(path, f)
	case FormatProto:
		return s.saveProto(path, f)
	default:
		return errors.Errorf("unsupported batch file format: %s", s.format)
	}
}

// Load reads a batch file from path
func (s *Saver) Load(path string) (*File, error) {
	var (
		f   *File
		err error
	)
	switch s.format {
	case FormatJSON:
		f, err = s.loadJSON(path)
	case FormatProto:
		f, err = s.loadProto(path)
	default:
		return nil, errors.Errorf("unsupported batch file format: %s", s.format)
	}
	if err != nil {
		return nil, err
	}

	for i, b := range f.Batches {
		if err := Validate(b); err != nil {
			return nil, errors.Wrapf(err, "batch %d", i)
		}
	}
	return f, nil
}

// Load reads a batch file, choosing the format from the file extension
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return NewSaver(format).Load(path)
}

// Save writes a batch file, choosing the format from the file extension
func Save(path string, f *File) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return NewSaver(format).Save(path, f)
}

func (s *Saver) saveJSON(path string, f *File) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create batch file")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(f); err != nil {
		return errors.Wrap(err, "failed to encode batches")
	}
	return file.Close()
}

func (s *Saver) loadJSON(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open batch file")
	}
	defer file.Close()

	var f File
	if err := json.NewDecoder(file).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to decode batches")
	}
	return &f, nil
}

func (s *Saver) saveProto(path string, f *File) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create batch file")
	}
	defer file.Close()

	w, err := NewWriter(file, f.Metadata)
	if err != nil {
		return err
	}
	for _, b := range f.Batches {
		if err := w.Write(b); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func (s *Saver) loadProto(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open batch file")
	}
	defer file.Close()

	r, err := NewReader(file)
	if err != nil {
		return nil, err
	}

	f := &File{Metadata: r.Metadata()}
	for {
		b, err := r.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}
		f.Batches = append(f.Batches, b)
	}
	return f, nil
}

// Validate checks the shape and label bookkeeping of a batch
func Validate(b *dataloader.Batch) error {
	if b == nil {
		return errors.Wrap(ErrCorrupt, "nil batch")
	}
	if b.N < 0 || b.Height < 0 || b.Width < 0 {
		return errors.Wrapf(ErrCorrupt, "negative dimension in shape %v", b.Shape())
	}
	if len(b.Images) != b.N*b.Height*b.Width {
		return errors.Wrapf(ErrCorrupt, "%d pixels for shape %v", len(b.Images), b.Shape())
	}
	if len(b.Paths) != b.N || len(b.Indices) != b.N {
		return errors.Wrapf(ErrCorrupt, "%d paths and %d indices for %d samples", len(b.Paths), len(b.Indices), b.N)
	}
	if !b.Labeled() {
		if len(b.Labels) != 0 {
			return errors.Wrap(ErrCorrupt, "labels without lengths")
		}
		return nil
	}
	if len(b.Lengths) != b.N {
		return errors.Wrapf(ErrCorrupt, "%d lengths for %d samples", len(b.Lengths), b.N)
	}
	sum := 0
	for _, n := range b.Lengths {
		if n < 0 {
			return errors.Wrapf(ErrCorrupt, "negative label length %d", n)
		}
		sum += int(n)
	}
	if sum != len(b.Labels) {
		return errors.Wrapf(ErrCorrupt, "lengths sum to %d but there are %d labels", sum, len(b.Labels))
	}
	return nil
}
