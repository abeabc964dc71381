package labels

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCharacter is returned when text contains a character outside Alphabet.
	ErrUnsupportedCharacter = errors.New("unsupported character")

	// ErrInvalidCode is returned when a code does not map to an Alphabet symbol.
	ErrInvalidCode = errors.New("invalid label code")
)

// UnsupportedCharacterError reports the first offending character of an encode call.
type UnsupportedCharacterError struct {
	Text string
	Char rune
	// Pos is the byte offset of Char in Text.
	Pos int
}

func (e *UnsupportedCharacterError) Error() string {
	return fmt.Sprintf("labels: %v %q at offset %d in %q", ErrUnsupportedCharacter, e.Char, e.Pos, e.Text)
}

func (e *UnsupportedCharacterError) Is(target error) bool {
	return target == ErrUnsupportedCharacter
}

// InvalidCodeError reports the first out-of-range code of a decode call.
type InvalidCodeError struct {
	Code int32
	Pos  int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("labels: %v %d at position %d (valid range 1..%d)", ErrInvalidCode, e.Code, e.Pos, len(Alphabet))
}

func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrInvalidCode
}
