package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSplit is returned for a split name other than train, dev or test.
	ErrUnknownSplit = errors.New("unknown split")

	// ErrMalformedInput is returned when an annotation line is not "<path> <index>".
	ErrMalformedInput = errors.New("malformed annotation line")

	// ErrIndexNotFound is returned when an annotation references a missing lexicon entry.
	ErrIndexNotFound = errors.New("lexicon index not found")

	// ErrIndexOutOfRange is returned for a dataset position outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ConfigurationError reports an invalid dataset configuration.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dataset: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MalformedLineError reports an annotation line that could not be parsed.
type MalformedLineError struct {
	File string
	// Line is 1-based.
	Line    int
	Content string
	Reason  string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("dataset: %s:%d: %v: %s (%q)", e.File, e.Line, ErrMalformedInput, e.Reason, e.Content)
}

func (e *MalformedLineError) Is(target error) bool {
	return target == ErrMalformedInput
}

// LookupError reports an annotation whose lexicon index does not exist.
type LookupError struct {
	File        string
	Line        int
	Index       int
	LexiconSize int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("dataset: %s:%d: %v: %d (lexicon has %d entries)", e.File, e.Line, ErrIndexNotFound, e.Index, e.LexiconSize)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrIndexNotFound
}
