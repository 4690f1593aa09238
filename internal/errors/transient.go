package errors

import (
	"errors"
	"fmt"
)

// TransientError represents a source failure that may succeed on retry:
// network errors, timeouts and rate-limit responses.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a TransientError for the named source.
func NewTransientError(source string, err error) *TransientError {
	return &TransientError{Source: source, Err: err}
}

// IsTransient reports whether err is a TransientError (even when wrapped).
func IsTransient(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}
