package dataset

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Synth90kDataset is an ordered, immutable list of samples. Position is the
// addressing scheme: sample i is always line i of the source annotation file
// (blank lines excluded) or path i of the list it was built from.
type Synth90kDataset struct {
	samples []Sample
	labeled bool
}

// NewSynth90kDataset loads the split's annotations from root
func NewSynth90kDataset(root string, split string) (*Synth90kDataset, error) {
	s, err := ParseSplit(split)
	if err != nil {
		return nil, err
	}

	samples, err := LoadAnnotations(root, s)
	if err != nil {
		return nil, err
	}

	return &Synth90kDataset{samples: samples, labeled: true}, nil
}

// NewFromPaths creates an inference dataset whose samples carry no text
func NewFromPaths(paths []string) (*Synth90kDataset, error) {
	if len(paths) == 0 {
		return nil, &ConfigurationError{Field: "paths", Value: "", Err: fmt.Errorf("no image paths given")}
	}

	samples := make([]Sample, len(paths))
	for i, p := range paths {
		samples[i] = Unlabeled{Path: p}
	}
	return &Synth90kDataset{samples: samples}, nil
}

// Len returns the number of items in the dataset
func (d *Synth90kDataset) Len() int {
	return len(d.samples)
}

// Labeled reports whether samples carry text
func (d *Synth90kDataset) Labeled() bool {
	return d.labeled
}

// Sample returns the sample at the given index
func (d *Synth90kDataset) Sample(index int) (Sample, error) {
	if index < 0 || index >= len(d.samples) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(d.samples))
	}
	return d.samples[index], nil
}

// Paths returns a copy of the image paths in order
func (d *Synth90kDataset) Paths() []string {
	paths := make([]string, len(d.samples))
	for i, s := range d.samples {
		paths[i] = s.ImagePath()
	}
	return paths
}

// Split splits the dataset into two parts. The first receives
// int(Len()*ratio) samples. With shuffle set, samples are permuted with seed first.
func (d *Synth90kDataset) Split(ratio float64, shuffle bool, seed int64) (*Synth90kDataset, *Synth90kDataset) {
	n := len(d.samples)
	firstSize := int(float64(n) * ratio)
	if firstSize < 0 {
		firstSize = 0
	}
	if firstSize > n {
		firstSize = n
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return d.Subset(indices[:firstSize]), d.Subset(indices[firstSize:])
}

// Subset creates a subset of the dataset with the specified indices, in the
// order given. Indices out of range are skipped.
func (d *Synth90kDataset) Subset(indices []int) *Synth90kDataset {
	subset := &Synth90kDataset{
		samples: make([]Sample, 0, len(indices)),
		labeled: d.labeled,
	}

	for _, idx := range indices {
		if idx < 0 || idx >= len(d.samples) {
			continue
		}
		subset.samples = append(subset.samples, d.samples[idx])
	}

	return subset
}

// LabelStats summarises the texts of a labeled dataset
type LabelStats struct {
	Samples    int
	MinLength  int
	MaxLength  int
	MeanLength float64
	CharCounts map[rune]int
}

// Stats computes label statistics. Unlabeled samples are not counted.
func (d *Synth90kDataset) Stats() LabelStats {
	stats := LabelStats{CharCounts: make(map[rune]int)}
	total := 0
	for _, s := range d.samples {
		l, ok := s.(Labeled)
		if !ok {
			continue
		}

		n := len(l.Text)
		if stats.Samples == 0 || n < stats.MinLength {
			stats.MinLength = n
		}
		if n > stats.MaxLength {
			stats.MaxLength = n
		}
		total += n
		stats.Samples++

		for _, r := range l.Text {
			stats.CharCounts[r]++
		}
	}

	if stats.Samples > 0 {
		stats.MeanLength = float64(total) / float64(stats.Samples)
	}
	return stats
}

// String returns a string representation of the dataset
func (d *Synth90kDataset) String() string {
	var sb strings.Builder
	kind := "unlabeled"
	if d.labeled {
		kind = "labeled"
	}
	sb.WriteString(fmt.Sprintf("Synth90kDataset: %d %s samples\n", len(d.samples), kind))

	if !d.labeled {
		return sb.String()
	}

	stats := d.Stats()
	sb.WriteString(fmt.Sprintf("Label length: min %d, max %d, mean %.2f\n", stats.MinLength, stats.MaxLength, stats.MeanLength))

	chars := make([]rune, 0, len(stats.CharCounts))
	for r := range stats.CharCounts {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	sb.WriteString("Character distribution:\n")
	for _, r := range chars {
		sb.WriteString(fmt.Sprintf("  %c: %d\n", r, stats.CharCounts[r]))
	}

	return sb.String()
}
