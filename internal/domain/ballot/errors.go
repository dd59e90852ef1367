package ballot

import (
	"errors"
	"fmt"
)

// ErrValidation is the kind shared by all ballot validation failures.
var ErrValidation = errors.New("invalid ballot")

// ValidationError names the ballot field that blocked submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
