package decode

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
)

// ErrorKind classifies decode failures.
type ErrorKind int

const (
	UnsupportedFormat ErrorKind = iota
	Corrupt
	IoError
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFormat:
		return "unsupported format"
	case Corrupt:
		return "corrupt image"
	case IoError:
		return "i/o error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned when neither decode path could produce pixels.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a decode Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// classify maps a failure from the image decoders to an ErrorKind.
func classify(err error) ErrorKind {
	var pe *fs.PathError
	switch {
	case errors.Is(err, image.ErrFormat):
		return UnsupportedFormat
	case errors.As(err, &pe):
		return IoError
	default:
		return Corrupt
	}
}
