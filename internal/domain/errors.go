package domain

import "errors"

var (
	// ErrUnauthenticated covers missing, malformed or expired credentials and unknown identities.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated identity lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced entity is absent from the caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned for transitions the current state does not allow.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation wraps malformed input.
	ErrValidation = errors.New("validation failed")
)
