package preprocessing

import (
	"errors"
	"fmt"
)

// ErrImageDecode is matched by every *ImageDecodeError
var ErrImageDecode = errors.New("image decode failed")

// ImageDecodeError reports an image that could not be opened or decoded.
type ImageDecodeError struct {
	Path   string
	Format string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("preprocessing: %v: %s: %v", ErrImageDecode, e.Path, e.Err)
	}
	return fmt.Sprintf("preprocessing: %v: %v", ErrImageDecode, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

func (e *ImageDecodeError) Is(target error) bool {
	return target == ErrImageDecode
}
