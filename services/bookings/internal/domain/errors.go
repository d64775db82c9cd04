package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
	ErrConflict        = errors.New("conflict")

	ErrRoomUnavailable   = fmt.Errorf("%w: room is already booked for these dates", ErrConflict)
	ErrAlreadyReviewed   = fmt.Errorf("%w: a review for this booking already exists", ErrConflict)
	ErrEmailTaken        = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: status transition is not allowed", ErrConflict)
)

// ValidationError is a recoverable input error bound to a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
