package hyperlink

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is matched by every ArgumentError via errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports a parameter that failed validation. Value holds the
// offending value when a single element of a collection was rejected.
type ArgumentError struct {
	Param   string
	Value   any
	Message string
}

func newArgumentError(param string, value any, format string, args ...any) *ArgumentError {
	return &ArgumentError{
		Param:   param,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidArgument, e.Message)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// IsInvalidArgument reports whether err is, or wraps, an argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
