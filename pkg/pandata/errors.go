package pandata

import (
	"errors"
	"fmt"
)

// ErrShape is matched by errors.Is for any *ShapeError.
var ErrShape = errors.New("unexpected JSON shape")

// IOError is returned when the source could not be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError is returned when the source is not valid JSON. Offset is the
// byte position reported by the decoder, or -1 if unknown.
type ParseError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("failed to parse JSON %s at offset %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("failed to parse JSON %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ShapeError is returned when the parsed JSON is not an array of objects.
// Index is -1 when the root itself has the wrong kind.
type ShapeError struct {
	Path  string
	Index int
	Kind  string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to load %s: expected an array of objects, root is %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("failed to load %s: expected an array of objects, element %d is %s", e.Path, e.Index, e.Kind)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }
