// Package apperr holds the error kinds shared by the cart and orders services.
//
// Every failure reported by the core wraps exactly one of the sentinels below, so callers can
// branch with errors.Is regardless of how many layers the error crossed.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrIndex             = errors.New("line item index out of range")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrUnauthorized      = errors.New("actor is not authorized")
	ErrNotFound          = errors.New("not found")
)

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Index reports an out of range line item index for a cart of size n.
func Index(index, n int) error {
	return fmt.Errorf("%w: index %d, cart has %d items", ErrIndex, index, n)
}

func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// TransitionError is returned when a status change is not in the adjacency set of the
// current status. It matches ErrInvalidTransition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsDomain reports whether err belongs to one of the caller-facing kinds. Anything else is an
// infrastructure failure.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrIndex) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound)
}
