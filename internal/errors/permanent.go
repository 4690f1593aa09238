package errors

import (
	"errors"
	"fmt"
)

// PermanentError represents a source failure that will not succeed on retry,
// such as a malformed response or an unexpected schema.
type PermanentError struct {
	Source string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure: %v", e.Source, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a PermanentError for the named source.
func NewPermanentError(source string, err error) *PermanentError {
	return &PermanentError{Source: source, Err: err}
}

// IsPermanent reports whether err is a PermanentError (even when wrapped).
func IsPermanent(err error) bool {
	var pErr *PermanentError
	return errors.As(err, &pErr)
}
