package dataset

// Sample is one dataset entry. It is either Labeled or Unlabeled; use a type
// switch to reach the text of a labeled entry.
type Sample interface {
	ImagePath() string
	sample()
}

// Labeled is an image with its ground-truth text
type Labeled struct {
	Path string
	Text string
}

// Unlabeled is an image with no text, used for inference
type Unlabeled struct {
	Path string
}

func (s Labeled) ImagePath() string   { return s.Path }
func (s Unlabeled) ImagePath() string { return s.Path }

func (Labeled) sample()   {}
func (Unlabeled) sample() {}
